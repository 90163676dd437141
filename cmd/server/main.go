package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/database"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/gpio"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/handler"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/jobs"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/metrics"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/middleware"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/mqtt"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/network"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/notify"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/push"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/redis"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sensor"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/service"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sse"
)

const rateLimitBurst = 10

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	db, err := database.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	detectionRepo := repository.NewDetectionRepository(db.DB)
	pushRepo := repository.NewPushSubscriptionRepository(db.DB)

	var settingsRepo repository.SettingsRepository
	if cfg.SettingsBackend == config.SettingsBackendFile {
		settingsRepo = repository.NewFileSettingsRepository(cfg.SettingsFile)
	} else {
		settingsRepo = repository.NewSettingsRepository(db.DB)
	}

	settings := service.NewSettingsManager(settingsRepo)
	ctx, cancel = context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := settings.Load(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to load settings")
	}
	cancel()

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	m := metrics.New()
	sink := notify.NewSink(notify.NewLogBuffer(cfg.LogBufferSize), broker)

	var driver sensor.Driver
	if cfg.SensorPort != "" {
		driver = sensor.NewSerialDriver(cfg.SensorPort, cfg.SensorBaud,
			sensor.WithTimeouts(config.SensorCallTimeout, config.SensorEnrollTimeout))
	} else {
		driver = sensor.NewSimulator()
	}
	defer driver.Close()

	var ringer service.Ringer = gpio.Noop{}
	if cfg.DoorbellGPIOPath != "" {
		ringer = gpio.NewPin(cfg.DoorbellGPIOPath, cfg.DoorbellPulse())
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher service.Publisher = mqtt.Noop{}
	if cfg.MQTTBrokerURL != "" {
		client := mqtt.New(mqtt.Config{
			BrokerURL:       cfg.MQTTBrokerURL,
			Username:        cfg.MQTTUsername,
			Password:        cfg.MQTTPassword,
			ClientID:        cfg.MQTTClientID,
			DiscoveryPrefix: cfg.HADiscoveryPrefix,
			RootTopic:       settings.AppSettings().MQTTRootTopic,
		})
		client.OnRingCommand(func() {
			if err := ringer.Ring(rootCtx); err != nil {
				log.Error().Err(err).Msg("remote ring failed")
			}
		})
		if err := client.Connect(rootCtx); err != nil {
			log.Error().Err(err).Msg("mqtt connect failed, publishing disabled until reconnect")
		}
		defer client.Close()
		publisher = client
	}

	var alerter service.Alerter = push.Noop{}
	var vapidKeys handler.VAPIDKeySource
	if cfg.PushEnabled() {
		notifier := push.NewNotifier(pushRepo, push.Options{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		})
		notifier.Start(rootCtx)
		defer notifier.Wait()
		alerter = notifier
		vapidKeys = notifier
	}

	guard := service.NewPairingGuard(settings, driver, sink)
	scanner := service.NewScanHandler(service.ScanHandlerDeps{
		Policy:     service.ParseErrorEdgePolicy(cfg.ScanErrorEdgePolicy),
		Guard:      guard,
		Publisher:  publisher,
		Ringer:     ringer,
		Alerter:    alerter,
		Detections: detectionRepo,
		Notifier:   sink,
		Metrics:    m,
	})

	// The fingerprint service needs the state machine's maintenance lock and
	// the enrollment controller needs the fingerprint service as its list sink.
	var machine *service.ModeStateMachine
	lock := maintenanceLockFunc(func(ctx context.Context, timeout time.Duration) (func(), error) {
		return machine.AcquireMaintenance(ctx, timeout)
	})
	fingerprints := service.NewFingerprintService(lock, driver, sink, m, cfg.FingerlistCacheTTL(), cfg.MaintenanceTimeout())
	enroller := service.NewEnrollmentController(driver, sink, fingerprints, m)

	machine = service.NewModeStateMachine(service.StateMachineDeps{
		Sensor:   driver,
		Guard:    guard,
		Scanner:  scanner,
		Enroller: enroller,
		Wifi:     settings,
		Notifier: sink,
		Metrics:  m,
		Config: service.LoopConfig{
			TickInterval:       cfg.TickInterval(),
			SettleDelay:        cfg.SettleDelay(),
			MaintenanceTimeout: cfg.MaintenanceTimeout(),
		},
	})
	system := service.NewSystemService(settings, fingerprints, guard, machine, sink, cfg.MaintenanceTimeout())

	machineDone := make(chan struct{})
	go func() {
		defer close(machineDone)
		if err := machine.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("state machine exited")
		}
	}()

	cleanupJob := jobs.NewCleanupJob(detectionRepo, cfg.DetectionRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	signalJob := jobs.NewSignalJob(network.NewSignalReader(cfg.WirelessInterface), publisher, cfg.WifiSignalInterval())
	signalJob.Start()
	defer signalJob.Stop()

	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.SecureCookies)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.SecureCookies)
	authMiddleware := middleware.NewBasicAuthMiddleware(cfg.AdminPasswordHash)

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient.Client, cfg.RateLimitPerSec)
	} else {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitPerSec, rateLimitBurst)
	}
	rateLimitMiddleware := middleware.NewIPRateLimitMiddleware(limiter, "api")

	healthHandler := handler.NewHealthHandler(db, machine)
	eventsHandler := handler.NewEventsHandler(broker, machine, sink)
	deviceHandler := handler.NewDeviceHandler(machine, system, settings, sink)
	fingerprintHandler := handler.NewFingerprintHandler(fingerprints)
	detectionHandler := handler.NewDetectionHandler(detectionRepo)
	pushHandler := handler.NewPushHandler(vapidKeys, pushRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)

		// Long-lived stream: no request timeout.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Use(csrfMiddleware.Handler)

			r.Mount("/fingerprints", fingerprintHandler.Routes())
			r.Mount("/detections", detectionHandler.Routes())
			r.Mount("/push", pushHandler.Routes())
			r.Mount("/", deviceHandler.Routes())
		})
	})

	if cfg.StaticDir != "" {
		spa := handler.NewSPAHandler(cfg.StaticDir)
		r.Handle("/*", spa)
		log.Info().Str("dir", cfg.StaticDir).Msg("serving web ui")
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutting down server...")
	case <-system.RebootRequested():
		// Give the reboot notification time to reach connected clients.
		time.Sleep(config.RebootDelay)
		log.Info().Msg("restarting on request...")
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	<-machineDone

	log.Info().Msg("server exited")
}

type maintenanceLockFunc func(ctx context.Context, timeout time.Duration) (func(), error)

func (f maintenanceLockFunc) AcquireMaintenance(ctx context.Context, timeout time.Duration) (func(), error) {
	return f(ctx, timeout)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
