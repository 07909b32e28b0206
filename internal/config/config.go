// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port"`

	// DatabaseDSN holds the Postgres connection string. Empty keeps the
	// profile store in memory.
	DatabaseDSN string `json:"database_dsn"`

	// RedisAddr is the location cache address. Empty keeps the cache in-process.
	RedisAddr string `json:"redis_addr"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	GeocoderURL       string        `json:"geocoder_url"`
	GeocoderUserAgent string        `json:"geocoder_user_agent"`
	GeocoderTimeout   time.Duration `json:"geocoder_timeout"`

	VoiceAPIURL        string        `json:"voice_api_url"`
	VoiceAPIKey        string        `json:"voice_api_key"`
	VoiceAgentID       string        `json:"voice_agent_id"`
	VoicePhoneNumberID string        `json:"voice_phone_number_id"`
	VoiceTimeout       time.Duration `json:"voice_timeout"`

	// MQTTBroker enables dispatch event publishing when set.
	MQTTBroker string `json:"mqtt_broker"`
	MQTTTopic  string `json:"mqtt_topic"`

	// Latitude, Longitude and LocationDenied feed the client's position source.
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LocationDenied bool    `json:"location_denied"`

	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
	// TLSClientCA, when set, verifies device client certificates that are presented.
	TLSClientCA string `json:"tls_client_ca"`
}

// Default returns options with every default applied.
func Default() *Options {
	return &Options{
		Port:              "localhost:8080",
		Config:            "config.json",
		LogLevel:          "info",
		LogFormat:         "json",
		GeocoderURL:       "https://nominatim.openstreetmap.org",
		GeocoderUserAgent: "CovertApp/1.0",
		GeocoderTimeout:   10 * time.Second,
		VoiceAPIURL:       "https://api.elevenlabs.io/v1/convai/twilio/outbound-call",
		VoiceTimeout:      30 * time.Second,
		MQTTTopic:         "covert/sos",
	}
}

// Register binds the command-line flags to o on fs.
func (o *Options) Register(fs *flag.FlagSet) {
	fs.StringVar(&o.Port, "a", o.Port, "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "db address")
	fs.StringVar(&o.RedisAddr, "r", o.RedisAddr, "redis address for the location cache")
	fs.StringVar(&o.Config, "config", o.Config, "path to config file")
	fs.StringVar(&o.Config, "c", o.Config, "path to config file (shorthand)")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.Float64Var(&o.Latitude, "lat", o.Latitude, "fixed latitude for the client position source")
	fs.Float64Var(&o.Longitude, "lon", o.Longitude, "fixed longitude for the client position source")
	fs.BoolVar(&o.LocationDenied, "no-location", o.LocationDenied, "deny location permission")
}

// Load parses args with a fresh FlagSet, then applies the JSON config file
// and the environment.
func Load(args []string) (*Options, error) {
	opts := Default()
	fs := flag.NewFlagSet("covert", flag.ContinueOnError)
	opts.Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := opts.applyEnv(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Parse loads options from os.Args and exits the process on error.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

func (o *Options) applyEnv() error {
	setString(&o.Port, "SERVER_ADDRESS")
	setString(&o.DatabaseDSN, "DATABASE_DSN")
	setString(&o.RedisAddr, "REDIS_ADDR")
	setString(&o.LogLevel, "LOG_LEVEL")
	setString(&o.LogFormat, "LOG_FORMAT")
	setString(&o.GeocoderURL, "GEOCODER_URL")
	setString(&o.GeocoderUserAgent, "GEOCODER_USER_AGENT")
	setString(&o.VoiceAPIURL, "VOICE_API_URL")
	setString(&o.VoiceAPIKey, "VOICE_API_KEY")
	setString(&o.VoiceAgentID, "VOICE_AGENT_ID")
	setString(&o.VoicePhoneNumberID, "VOICE_PHONE_NUMBER_ID")
	setString(&o.MQTTBroker, "MQTT_BROKER")
	setString(&o.MQTTTopic, "MQTT_TOPIC")
	setString(&o.TLSCert, "TLS_CERT")
	setString(&o.TLSKey, "TLS_KEY")
	setString(&o.TLSClientCA, "TLS_CLIENT_CA")

	if v := os.Getenv("GEOCODER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GEOCODER_TIMEOUT: %w", err)
		}
		o.GeocoderTimeout = d
	}
	if v := os.Getenv("VOICE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VOICE_TIMEOUT: %w", err)
		}
		o.VoiceTimeout = d
	}
	if v := os.Getenv("LOCATION_DENIED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOCATION_DENIED: %w", err)
		}
		o.LocationDenied = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
