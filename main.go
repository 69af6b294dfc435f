package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"

	"kontratago/internal/api"
	"kontratago/internal/client"
	"kontratago/internal/config"
	"kontratago/internal/feedback"
	"kontratago/internal/history"
	"kontratago/internal/menu"
	"kontratago/internal/mode"
	"kontratago/internal/orchestrator"
	"kontratago/internal/redis"
	"kontratago/internal/session"
	"kontratago/internal/storage"
	"kontratago/internal/upload"
)

func main() {
	cfgPath := os.Getenv("KONTRATAGO_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}))
	}

	dbType := os.Getenv("KONTRATAGO_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// History lives under one durable key: a redis key when a redis
	// block is configured, a JSON file otherwise.
	var histStore history.Store
	if cfg.Redis.Host != "" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		histStore = history.NewRedisStore(rdb)
	} else {
		histStore = history.NewFileStore(cfg.BasicConfig.HistoryPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := session.NewStore(db)
	if err := store.Load(ctx); err != nil {
		log.Fatalf("load sessions: %v", err)
	}
	hist := history.New(histStore, cfg.BasicConfig.HistoryCap)
	hist.Load(ctx)

	backend := client.New(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
	modes := mode.NewController()
	validator := upload.NewValidator(cfg.Upload.MaxBytes, cfg.Upload.AllowedExtensions)
	orch := orchestrator.New(store, hist, modes, validator, backend, orchestrator.Options{
		ChatMode:     cfg.BasicConfig.ChatMode,
		MinPromptLen: cfg.BasicConfig.MinPromptLen,
		MaxPromptLen: cfg.BasicConfig.MaxPromptLen,
		BannerTTL:    time.Duration(cfg.BasicConfig.BannerTTLSeconds) * time.Second,
		UploadTTL:    time.Duration(cfg.BasicConfig.PendingUploadTTLMinutes) * time.Minute,
	})
	orch.StartUploadCleaner(ctx, 5*time.Minute)

	menus := menu.NewController(store)
	fb := feedback.NewCollector(backend)
	handlers := api.NewHandler(store, modes, orch, menus, hist, fb, backend, validator)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
