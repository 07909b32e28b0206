// Package main starts the CovertKeeper API server: profile and note storage,
// location resolution and remote SOS dispatch over HTTP(S).
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/app"
	"github.com/atinyakov/CovertKeeper/internal/cache"
	"github.com/atinyakov/CovertKeeper/internal/config"
	"github.com/atinyakov/CovertKeeper/internal/db"
	"github.com/atinyakov/CovertKeeper/internal/dispatch"
	"github.com/atinyakov/CovertKeeper/internal/events"
	"github.com/atinyakov/CovertKeeper/internal/location"
	"github.com/atinyakov/CovertKeeper/internal/logger"
	"github.com/atinyakov/CovertKeeper/internal/repository"
	"github.com/atinyakov/CovertKeeper/internal/server/handler/http"
	"github.com/atinyakov/CovertKeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	zapLogger, err := logger.NewLogger(options.LogLevel, options.LogFormat, "covertkeeper")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, notes := openStore(options, zapLogger)
	profileService := service.NewProfileService(profiles, notes, zapLogger)
	locationCache := openCache(ctx, options, zapLogger)

	publisher := openPublisher(options, zapLogger)
	defer publisher.Close()

	geocoder := location.NewNominatimGeocoder(options.GeocoderURL, options.GeocoderUserAgent, options.GeocoderTimeout, zapLogger)
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		APIURL:        options.VoiceAPIURL,
		APIKey:        options.VoiceAPIKey,
		AgentID:       options.VoiceAgentID,
		PhoneNumberID: options.VoicePhoneNumberID,
		Timeout:       options.VoiceTimeout,
	}, zapLogger)

	locations := &http.LocationHandler{
		Geocoder: geocoder,
		Cache:    locationCache,
		Timeout:  options.GeocoderTimeout,
		Logger:   zapLogger,
	}
	router := http.NewRouter(
		&http.ProfileHandler{ProfileService: profileService, Logger: zapLogger},
		&http.NoteHandler{NoteService: profileService, Logger: zapLogger},
		locations,
		&http.SOSHandler{
			Profiles:  profileService,
			Emergency: app.NewEmergency(dispatcher, publisher, zapLogger),
			Locations: locations,
			Logger:    zapLogger,
		},
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := serve(server, options, zapLogger); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// openStore returns the Postgres repositories, or a shared in-memory
// repository when no DSN is configured or the database is unreachable.
func openStore(options *config.Options, log *zap.Logger) (service.ProfileRepository, service.NoteRepository) {
	if options.DatabaseDSN != "" {
		pg, err := db.InitPostgres(options.DatabaseDSN)
		if err == nil {
			log.Info("using postgres profile store")
			return repository.NewPostgresProfileRepository(pg), repository.NewPostgresNoteRepository(pg)
		}
		log.Error("cannot init database, changes will not be saved", zap.Error(err))
	}
	mem := repository.NewMemoryRepository()
	return mem, mem
}

// openCache returns a Redis location cache, or an in-process one when Redis
// is not configured or does not answer.
func openCache(ctx context.Context, options *config.Options, log *zap.Logger) cache.LocationCache {
	if options.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: options.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			log.Info("using redis location cache", zap.String("addr", options.RedisAddr))
			return cache.NewRedisLocationCache(client, cache.DefaultTTL)
		}
		log.Warn("redis unavailable, caching locations in memory", zap.Error(err))
		_ = client.Close()
	}
	return cache.NewMemoryLocationCache(cache.DefaultTTL)
}

func openPublisher(options *config.Options, log *zap.Logger) events.Publisher {
	if options.MQTTBroker == "" {
		return events.Nop{}
	}
	pub, err := events.NewMQTTPublisher(options.MQTTBroker, "covertkeeper-"+uuid.NewString()[:8], options.MQTTTopic, log)
	if err != nil {
		log.Warn("mqtt unavailable, dispatch events disabled", zap.Error(err))
		return events.Nop{}
	}
	return pub
}

// serve runs plain HTTP unless a certificate is configured. With a client
// CA, presented device certificates are verified and their Common Name
// identifies the device.
func serve(server *nethttp.Server, options *config.Options, log *zap.Logger) error {
	if options.TLSCert == "" || options.TLSKey == "" {
		log.Info("starting HTTP server", zap.String("addr", server.Addr))
		return server.ListenAndServe()
	}

	cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
	if err != nil {
		return fmt.Errorf("load server TLS cert/key: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if options.TLSClientCA != "" {
		caCert, err := os.ReadFile(options.TLSClientCA)
		if err != nil {
			return fmt.Errorf("read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return errors.New("failed to append client CA to pool")
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}
	server.TLSConfig = tlsConfig

	log.Info("starting HTTPS server", zap.String("addr", server.Addr))
	return server.ListenAndServeTLS("", "")
}
