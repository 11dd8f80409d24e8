package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PabloGalante/mirror-agent/internal/adapters/http"
	"github.com/PabloGalante/mirror-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/mirror-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/mirror-agent/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/mirror-agent/internal/adapters/storage/redis"
	sqlitestore "github.com/PabloGalante/mirror-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/mirror-agent/internal/app/mirror"
	"github.com/PabloGalante/mirror-agent/internal/app/moments"
	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/config"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

type stores struct {
	profiles domain.ProfileStore
	signals  domain.SignalStore
	moments  domain.MomentStore
	closer   io.Closer
}

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := archetype.Default()
	if cfg.CatalogPath != "" {
		catalog, err = archetype.LoadFile(cfg.CatalogPath)
		if err != nil {
			log.Error("error loading archetype catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	// Choose between mock and Vertex by config (useful for dev)
	var llmClient domain.LLMClient
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		llmClient = llm.NewMockLLM()
	} else {
		log.Info("using Vertex LLM client", "project", cfg.GCPProjectID, "model", cfg.ModelName)
		llmClient, err = llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Error("error initializing Vertex LLM client", "error", err)
			os.Exit(1)
		}
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	if st.closer != nil {
		defer st.closer.Close()
	}

	detectorCfg := engine.DefaultDetectorConfig()
	detectorCfg.DefaultShiftSignificance = cfg.DefaultShiftSignificance

	mirrorSvc := mirror.NewService(catalog, llmClient, st.profiles, st.signals, st.moments,
		mirror.WithHistoryLimit(cfg.HistoryLimit),
		mirror.WithDetectorConfig(detectorCfg),
	)
	momentsSvc := moments.NewService(st.moments)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(mirrorSvc, momentsSvc, catalog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
	}()

	log.Info("mirror API listening", "port", cfg.Port, "mode", cfg.Mode, "storage", cfg.StorageBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := observability.WithFields("backend", cfg.StorageBackend)

	switch cfg.StorageBackend {
	case config.StorageFirestore:
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		// 1 store, implements 3 interfaces
		return &stores{profiles: fs, signals: fs, moments: fs, closer: fs}, nil

	case config.StorageSQLite:
		log.Info("using SQLite storage", "path", cfg.SQLitePath)
		db, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{profiles: db, signals: db, moments: db, closer: db}, nil

	case config.StorageRedis:
		log.Info("using Redis storage", "addr", cfg.RedisAddr)
		rs, err := redisstore.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return &stores{profiles: rs, signals: rs, moments: rs, closer: rs}, nil

	default:
		log.Info("using in-memory storage")
		return &stores{
			profiles: memstore.NewProfileStore(),
			signals:  memstore.NewSignalStore(),
			moments:  memstore.NewMomentStore(),
		}, nil
	}
}
