// Package main runs the CovertKeeper device shell: the decoy converter and,
// behind the PIN, the covert safety surface for this machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/app"
	"github.com/atinyakov/CovertKeeper/internal/cache"
	"github.com/atinyakov/CovertKeeper/internal/client/shell"
	"github.com/atinyakov/CovertKeeper/internal/config"
	"github.com/atinyakov/CovertKeeper/internal/db"
	"github.com/atinyakov/CovertKeeper/internal/device"
	"github.com/atinyakov/CovertKeeper/internal/dispatch"
	"github.com/atinyakov/CovertKeeper/internal/events"
	"github.com/atinyakov/CovertKeeper/internal/location"
	"github.com/atinyakov/CovertKeeper/internal/logger"
	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/repository"
	"github.com/atinyakov/CovertKeeper/internal/service"
	"github.com/atinyakov/CovertKeeper/internal/sos"
)

func main() {
	options := config.Parse()

	// The shell owns stdout, so logs go to stderr at warn level unless configured.
	level := options.LogLevel
	if level == config.Default().LogLevel {
		level = "warn"
	}
	zapLogger, err := logger.NewLogger(level, "console", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceID := device.NewIdentity(device.HostSeed{AppID: "covertkeeper"}, zapLogger).DeviceID(ctx)

	profiles, notes := openStore(options.DatabaseDSN, zapLogger)
	publisher := events.Publisher(events.Nop{})
	if options.MQTTBroker != "" {
		if pub, err := events.NewMQTTPublisher(options.MQTTBroker, "covertkeeper-"+deviceID[:8], options.MQTTTopic, zapLogger); err == nil {
			publisher = pub
		} else {
			zapLogger.Warn("mqtt unavailable, dispatch events disabled", zap.Error(err))
		}
	}
	defer publisher.Close()

	resolver := location.NewResolver(
		location.FixedPosition{
			Coordinates: models.Coordinates{Latitude: options.Latitude, Longitude: options.Longitude},
			Denied:      options.LocationDenied,
		},
		location.NewNominatimGeocoder(options.GeocoderURL, options.GeocoderUserAgent, options.GeocoderTimeout, zapLogger),
		options.GeocoderTimeout,
		zapLogger,
	)
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		APIURL:        options.VoiceAPIURL,
		APIKey:        options.VoiceAPIKey,
		AgentID:       options.VoiceAgentID,
		PhoneNumberID: options.VoicePhoneNumberID,
		Timeout:       options.VoiceTimeout,
	}, zapLogger)

	sh := shell.New(os.Stdin, os.Stdout)
	session := app.NewSession(app.SessionConfig{
		DeviceID:  deviceID,
		Profiles:  service.NewProfileService(profiles, notes, zapLogger),
		Locator:   resolver,
		Cache:     cache.NewMemoryLocationCache(cache.DefaultTTL),
		Emergency: app.NewEmergency(dispatcher, publisher, zapLogger),
		Clock:     sos.RealClock{},
		Logger:    zapLogger,
		OnAlert:   sh.Alert,
		OnCheckIn: sh.CheckInPrompt,
	})

	sh.Run(ctx, session)
}

// openStore uses Postgres when a DSN is configured. Without one, or when the
// database cannot be opened, the session keeps its data in memory.
func openStore(dsn string, log *zap.Logger) (service.ProfileRepository, service.NoteRepository) {
	if dsn != "" {
		pg, err := db.InitPostgres(dsn)
		if err == nil {
			return repository.NewPostgresProfileRepository(pg), repository.NewPostgresNoteRepository(pg)
		}
		log.Warn("cannot init database", zap.Error(err))
	}
	mem := repository.NewMemoryRepository()
	return mem, mem
}
