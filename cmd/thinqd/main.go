package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/homecloud/thinqd/internal/config"
	"github.com/homecloud/thinqd/internal/poller"
	"github.com/homecloud/thinqd/internal/publish"
	"github.com/homecloud/thinqd/internal/rate"
	"github.com/homecloud/thinqd/internal/server"
	"github.com/homecloud/thinqd/internal/sessionstore"
	"github.com/homecloud/thinqd/thinq"
	"github.com/homecloud/thinqd/thinq/devices"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}

	httpClient := rate.WrapHTTP(cfg.RatePerMinute, &http.Client{Timeout: cfg.RequestTimeout()})

	auth := thinq.NewAuthManager(thinq.AuthConfig{
		Endpoints:  endpoints(cfg),
		Country:    cfg.Country,
		Language:   cfg.Language,
		HTTPClient: httpClient,
		OnUpdate: func(session thinq.Session) {
			if err := store.Save(ctx, session); err != nil {
				log.Printf("persist session: %v", err)
			}
		},
	})

	if err := establishSession(ctx, cfg, auth, store); err != nil {
		log.Fatalf("login: %v", err)
	}

	client := thinq.NewClient(auth, thinq.WithHTTPClient(httpClient))

	registry := devices.NewRegistry(client)
	models, err := registry.Discover(ctx)
	if err != nil {
		log.Fatalf("discover devices: %v", err)
	}
	if len(models) == 0 {
		log.Printf("no devices on the account; serving health and metrics only")
	}
	for id, model := range models {
		log.Printf("device %s: kind=%s model=%s", id, model.Kind(), model.Descriptor().ModelName)
	}

	publisher, err := publish.New(cfg.MQTT)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer publisher.Close()

	source := poller.NewCloudSource(client, models)
	defer source.Close(context.Background())

	loop := poller.New(source, cfg.PollInterval(), cfg.MaxConcurrentPolls)
	loop.OnStatus = func(deviceID string, status devices.Status) {
		if err := publisher.Publish(deviceID, status); err != nil {
			log.Printf("publish %s: %v", deviceID, err)
		}
	}
	loop.OnAuthExpired = func(err error) {
		log.Printf("refresh token rejected, interactive login required: %v", err)
		cancel()
	}

	metricsRegistry := buildMetricsRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthHandler)
	mux.Handle("/metrics", server.MetricsHandler(metricsRegistry))
	mux.Handle("/devices", server.StatusHandler(loop))
	mux.Handle("/devices/", server.StatusHandler(loop))

	httpServer := server.NewHTTPServer(cfg.HTTPAddr, mux)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	deviceIDs := make([]string, 0, len(models))
	for id := range models {
		deviceIDs = append(deviceIDs, id)
	}

	loop.Run(ctx, deviceIDs)

	_ = httpServer.Server.Shutdown(context.Background())
}

func buildStore(cfg *config.Config) (sessionstore.Store, error) {
	file := sessionstore.NewFileStore(cfg.SessionFile)
	if cfg.S3 == nil {
		return file, nil
	}
	s3, err := sessionstore.NewS3Store(cfg.S3)
	if err != nil {
		return nil, err
	}
	return &sessionstore.Mirror{Primary: file, Secondary: s3}, nil
}

func endpoints(cfg *config.Config) thinq.Endpoints {
	eps := thinq.DefaultEndpoints()
	if cfg.AuthBase != "" {
		eps.AuthBase = cfg.AuthBase
	}
	if cfg.V1Base != "" {
		eps.V1Base = cfg.V1Base
	}
	if cfg.V2Base != "" {
		eps.V2Base = cfg.V2Base
	}
	return eps
}

// establishSession restores a persisted session, or performs first
// login from the configured auth code file.
func establishSession(ctx context.Context, cfg *config.Config, auth *thinq.AuthManager, store sessionstore.Store) error {
	session, err := store.Load(ctx)
	if err == nil {
		auth.Restore(session)
		log.Printf("restored %s session for %s", session.Version, session.Country)
		return nil
	}
	if !errors.Is(err, sessionstore.ErrNotFound) {
		return err
	}

	if cfg.AuthCodeFile == "" {
		log.Printf("no session persisted; visit %s and store the callback token in auth_code_file",
			thinq.OAuthURL(endpoints(cfg), cfg.Country, cfg.Language))
		return errors.New("no session and no auth_code_file configured")
	}
	code, err := os.ReadFile(cfg.AuthCodeFile)
	if err != nil {
		return err
	}

	_, err = auth.Login(ctx, thinq.Credentials{AuthCode: strings.TrimSpace(string(code))})
	return err
}

func buildMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	for _, c := range thinq.MetricsCollectors() {
		registry.MustRegister(c)
	}
	for _, c := range rate.MetricsCollectors() {
		registry.MustRegister(c)
	}
	for _, c := range poller.MetricsCollectors() {
		registry.MustRegister(c)
	}
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "thinqd_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))
	return registry
}
