package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dnguyen/tasktick/internal/config"
	"github.com/dnguyen/tasktick/internal/credential"
	"github.com/dnguyen/tasktick/internal/remote"
	"github.com/dnguyen/tasktick/internal/storage"
	"github.com/dnguyen/tasktick/internal/store"
	syncengine "github.com/dnguyen/tasktick/internal/sync"
)

// app bundles the explicitly constructed services a command needs.
// Everything is wired here, torn down in close, and passed by value —
// no package-level singletons.
type app struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	storage *storage.Adapter
	store   *store.Store
	engine  *syncengine.Engine
}

// newApp builds the full service graph from the config file.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	sa, err := storage.New(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	// A missing token simply leaves the remote unconfigured; the sync
	// engine then no-ops.
	token, _ := credential.Get(credential.TokenKey)
	backend := remote.NewClient(cfg.Remote.BaseURL, token)

	engine := syncengine.NewEngine(
		backend,
		time.Duration(cfg.Sync.ItemTimeoutSec)*time.Second,
		log,
	)

	st := store.New(sa, engine, store.Config{
		OwnerID:      cfg.Remote.OwnerID,
		SaveDebounce: time.Duration(cfg.Store.SaveDebounceMs) * time.Millisecond,
		UndoLimit:    cfg.Store.UndoLimit,
		UndoTTL:      time.Duration(cfg.Store.UndoTTLSec) * time.Second,
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		storage: sa,
		store:   st,
		engine:  engine,
	}, nil
}

// storeToken saves the remote access token to the system keyring.
func storeToken(token string) error {
	return credential.Set(credential.TokenKey, token)
}

// close flushes the store and releases every resource, in reverse
// construction order.
func (a *app) close() {
	a.store.Close()
	if err := a.storage.Close(); err != nil {
		a.log.Warn("closing local storage", zap.Error(err))
	}
	_ = a.log.Sync()
}
