// Command focusing-manager runs the clustered focusing-manager HTTP
// service: the preprocessing pipeline and lens runtime behind /focus and
// /preprocessing (spec.md §1/§6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cache"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/config"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/discovery"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/fhirclient"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/httpapi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/lens"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/observability"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/pipeline"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("", cfg.LogLevel)

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init disabled, continuing without tracing/metrics")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("focusing-manager exited with error")
	}
}

func run(cfg config.Config) error {
	httpClient := observability.NewHTTPClient(nil)

	discoveryBackend, err := newDiscoveryBackend(cfg)
	if err != nil {
		return fmt.Errorf("discovery backend: %w", err)
	}

	selectorClient := lens.NewSelectorClient(httpClient)
	lensRegistry := registry.NewLensRegistry(discoveryBackend, cfg.FocusingLabelSelector, selectorClient)
	preprocessorRegistry := registry.NewPreprocessorRegistry(discoveryBackend, cfg.PreprocessingLabelSelector, cfg.ExternalPreprocessors)

	var redisClient redis.UniversalClient
	if requiresRedis(cfg.Cache.Backend) {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	leafFactory := cache.DefaultLeafFactory(cache.Options{
		MaxItems:   cfg.Cache.MaxItems,
		DefaultTTL: cfg.Cache.TTL,
		Redis:      redisClient,
		Compress:   cfg.Cache.Compress,
	})
	cacheBackend, err := cache.ParseTopology(cfg.Cache.Backend, leafFactory)
	if err != nil {
		return fmt.Errorf("cache topology: %w", err)
	}

	pipe := pipeline.New(cacheBackend, preprocessorRegistry, httpClient, cfg.Cache.SchemaVersion)
	fhir := fhirclient.New(httpClient, cfg.FHIREpiURL, cfg.FHIRIpsURL, cfg.ProfileURL)

	var consoleSink lens.ConsoleSink
	if cfg.LensLoggingEnabled {
		consoleSink = lensConsoleLogger{}
	}
	lensRuntime := lens.New(consoleSink)

	server := httpapi.NewServer(&httpapi.Server{
		Preprocessors: preprocessorRegistry,
		Lenses:        lensRegistry,
		LensClient:    selectorClient,
		LensRuntime:   lensRuntime,
		Pipeline:      pipe,
		FHIR:          fhir,
		Cache:         cacheBackend,
		Renderer:      httpapi.NewTemplateRenderer(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := preprocessorRegistry.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial preprocessor discovery failed, will retry lazily")
	}
	if _, err := lensRegistry.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial lens discovery failed, will retry lazily")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("focusing-manager listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newDiscoveryBackend selects the cluster orchestrator or the standalone
// container-runtime back-end per ENVIRONMENT (spec.md §4.5/§6).
func newDiscoveryBackend(cfg config.Config) (discovery.Backend, error) {
	if cfg.IsStandalone() {
		return discovery.NewContainerRuntimeBackend()
	}
	return discovery.NewOrchestratorBackend(os.Getenv("NAMESPACE"))
}

// requiresRedis reports whether the configured topology names any leaf
// other than "none"/"memory"/"mem", which need a distributed store.
func requiresRedis(topology string) bool {
	for _, tok := range strings.Split(topology, "<") {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "", "none", "memory", "mem":
		default:
			return true
		}
	}
	return false
}

// lensConsoleLogger forwards lens console.* calls to zerolog (spec.md §6
// LENS_LOGGING_ENABLED).
type lensConsoleLogger struct{}

func (lensConsoleLogger) Log(level, lensID, message string) {
	evt := log.Info()
	switch level {
	case "warn":
		evt = log.Warn()
	case "error":
		evt = log.Error()
	case "debug":
		evt = log.Debug()
	}
	evt.Str("lens", lensID).Msg(message)
}
