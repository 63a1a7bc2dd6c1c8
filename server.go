package main

import (
	"blogging/api"
	"blogging/config"
	"blogging/handlers"
	"blogging/logging"
	"blogging/storage"
	"blogging/storage/in_memory"
	"blogging/storage/persistent"
	"blogging/storage/persistent_cached"
	"blogging/storage/postgres"
	"blogging/tasks"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
)

// CreatePersistentStorage opens the mongo or postgres backend. The returned
// func releases its connections.
func CreatePersistentStorage(ctx context.Context, mode config.StorageMode, cfg *config.Config) (storage.Storage, func(), error) {
	switch mode {
	case config.Mongo:
		s, err := persistent.CreateMongoStorage(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	case config.Postgres:
		s, err := postgres.CreatePostgresStorage(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("invalid persistent storage %q", mode)
}

func CreateStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.Storage, func(), error) {
	switch cfg.StorageMode {
	case config.InMemory:
		return in_memory.CreateInMemoryStorage(), func() {}, nil
	case config.Mongo, config.Postgres:
		return CreatePersistentStorage(ctx, cfg.StorageMode, cfg)
	case config.Cached:
		persistentStorage, closePersistent, err := CreatePersistentStorage(ctx, cfg.CacheBackend, cfg)
		if err != nil {
			return nil, nil, err
		}
		cached, err := persistent_cached.CreatePersistentStorageCachedWithRedis(persistentStorage, cfg.RedisURL, cfg.CacheTTL, logger)
		if err != nil {
			closePersistent()
			return nil, nil, err
		}
		return cached, func() {
			_ = cached.Close()
			closePersistent()
		}, nil
	}
	return nil, nil, fmt.Errorf("invalid 'STORAGE_MODE' %q", cfg.StorageMode)
}

func CreateDispatcher(cfg *config.Config, s storage.Storage, logger logging.Logger) (tasks.Dispatcher, error) {
	if cfg.BrokerURL == "" {
		return tasks.NewInline(s, logger), nil
	}
	return tasks.NewMachinery(cfg.BrokerURL, logger)
}

// NewRouter wires the routes. validator may be nil to skip request validation.
func NewRouter(handler *handlers.HTTPHandler, validator *handlers.OpenAPIValidator) http.Handler {
	validate := func(f http.HandlerFunc) http.Handler {
		if validator == nil {
			return f
		}
		return validator.Middleware(f)
	}
	public := func(f http.HandlerFunc) http.Handler {
		return validate(f)
	}
	private := func(f http.HandlerFunc) http.Handler {
		return handler.RequireUser(validate(f))
	}

	r := mux.NewRouter()
	r.Use(handlers.BodyLimitMiddleware)
	r.HandleFunc("/maintenance/ping", handler.HealthCheck).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(handler.AuthMiddleware)

	v1.Handle("/auth/token", public(handler.HandleCreateToken)).Methods("POST")

	v1.Handle("/users", private(handler.HandleGetUsers)).Methods("GET")
	v1.Handle("/users", public(handler.HandleCreateUser)).Methods("POST")
	v1.Handle("/users/{userId}", private(handler.HandleGetUser)).Methods("GET")
	v1.Handle("/users/{userId}", private(handler.HandleUpdateUser)).Methods("PUT")
	v1.Handle("/users/{userId}", private(handler.HandlePatchUser)).Methods("PATCH")
	v1.Handle("/users/{userId}", private(handler.HandleDeleteUser)).Methods("DELETE")

	v1.Handle("/groups", private(handler.HandleGetGroups)).Methods("GET")
	v1.Handle("/groups", private(handler.HandleCreateGroup)).Methods("POST")
	v1.Handle("/groups/{groupId}", private(handler.HandleGetGroup)).Methods("GET")
	v1.Handle("/groups/{groupId}", private(handler.HandleUpdateGroup)).Methods("PUT", "PATCH")
	v1.Handle("/groups/{groupId}", private(handler.HandleDeleteGroup)).Methods("DELETE")

	// /posts/public must be registered before /posts/{postId}.
	v1.Handle("/posts/public", public(handler.HandleGetPublicPosts)).Methods("GET")
	v1.Handle("/posts", private(handler.HandleGetPosts)).Methods("GET")
	v1.Handle("/posts", private(handler.HandleCreatePost)).Methods("POST")
	v1.Handle("/posts/{postId}", private(handler.HandleGetPost)).Methods("GET")
	v1.Handle("/posts/{postId}", private(handler.HandleUpdatePost)).Methods("PUT")
	v1.Handle("/posts/{postId}", private(handler.HandlePatchPost)).Methods("PATCH")
	v1.Handle("/posts/{postId}", private(handler.HandleDeletePost)).Methods("DELETE")
	v1.Handle("/posts/{postId}/public_detail", public(handler.HandleGetPublicPost)).Methods("GET")

	return handler.AccessLogMiddleware(r)
}

func CreateServer(cfg *config.Config, handler *handlers.HTTPHandler) (*http.Server, error) {
	var validator *handlers.OpenAPIValidator
	if cfg.OpenAPIValidation {
		var err error
		validator, err = handlers.NewOpenAPIValidator(context.Background(), api.Spec)
		if err != nil {
			return nil, fmt.Errorf("invalid openapi document: %w", err)
		}
	}
	return &http.Server{
		Handler:      NewRouter(handler, validator),
		Addr:         cfg.Addr(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, s storage.Storage, logger logging.Logger) error {
	dispatcher, err := CreateDispatcher(cfg, s, logger)
	if err != nil {
		return err
	}
	srv, err := CreateServer(cfg, &handlers.HTTPHandler{
		Storage:  s,
		Tasks:    dispatcher,
		Logger:   logger,
		Secret:   []byte(cfg.SecretKey),
		TokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info(ctx, "start serving", "addr", srv.Addr, "storage", cfg.StorageMode)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	tasks.SetLogger(logger)

	s, closeStorage, err := CreateStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStorage()

	switch cfg.AppMode {
	case config.ServerMode:
		return serve(ctx, cfg, s, logger)
	case config.WorkerMode:
		logger.Info(ctx, "start worker", "storage", cfg.StorageMode)
		return tasks.RunWorker(cfg.BrokerURL, s, logger)
	}
	return fmt.Errorf("invalid 'APP_MODE' %q", cfg.AppMode)
}

func exitOnError(ctx context.Context, msg string, err error) {
	fallback, _ := logging.New(os.Stderr, "info")
	fallback.Error(ctx, msg, "error", err)
	os.Exit(1)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		exitOnError(ctx, "invalid configuration", err)
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		exitOnError(ctx, "invalid configuration", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "exit", "error", err)
		os.Exit(1)
	}
}
