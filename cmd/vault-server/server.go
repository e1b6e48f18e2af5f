package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"time"

	"filevault/internal/auth"
	"filevault/internal/objectstore"
	"filevault/internal/schema"
	"filevault/internal/users"
	"filevault/internal/vault"
	"filevault/pkg/metrics"
)

// vaultServer composes every component into one runnable process:
// migrations-then-listener ordering, an HMAC key generated once at startup,
// and graceful shutdown of the HTTP listener.
type vaultServer struct {
	config  *Config
	httpSrv *http.Server

	users   *users.Store
	metrics *metrics.VaultMetrics
}

// newVaultServer runs migrations, generates the token-signing key, builds
// the object store adapter, and assembles the HTTP handler — in that order,
// so a failure at any step aborts before the listener binds.
func newVaultServer(config *Config) (*vaultServer, error) {
	store, err := users.Open(config.DBPath, config.MaxConcurrentUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	if config.AtRestKeyHex != "" {
		key, err := hex.DecodeString(config.AtRestKeyHex)
		if err != nil {
			return nil, fmt.Errorf("failed to decode at-rest key: %w", err)
		}
		cipher, err := users.NewAtRestCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create at-rest cipher: %w", err)
		}
		store.SetCipher(cipher)
	}

	tokenCache, err := auth.NewTokenCache(config.MaxConcurrentUsers, config.AuthTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	minter, err := auth.NewTokenMinter()
	if err != nil {
		return nil, fmt.Errorf("failed to create token minter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	provider, err := objectstore.NewS3Provider(ctx, objectstore.S3Config{
		Region:          config.S3Region,
		AccessKeyID:     config.S3AccessKeyID,
		SecretAccessKey: config.S3SecretAccessKey,
		Endpoint:        config.S3Endpoint,
		UsePathStyle:    config.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise S3 provider: %w", err)
	}

	adapter := objectstore.NewAdapter(provider, objectstore.Config{
		Bucket:          config.S3Bucket,
		Region:          config.S3Region,
		AccessKeyID:     config.S3AccessKeyID,
		SecretAccessKey: config.S3SecretAccessKey,
		PresignedTTL:    config.PresignedURLTTL,
	})

	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("failed to compile request schemas: %w", err)
	}

	vaultMetrics := metrics.NewVaultMetrics()

	vaultSrv := &vault.Server{
		Tokens:    tokenCache,
		Minter:    minter,
		Users:     store,
		Objects:   adapter,
		Validator: validator,
		Metrics:   vaultMetrics,
		CORS:      vault.CORSConfig{AllowedOrigin: config.CORSOrigin},
	}

	addr := config.Host + ":" + config.Port
	return &vaultServer{
		config: config,
		httpSrv: &http.Server{
			Addr:    addr,
			Handler: vaultSrv.Handler(),
		},
		users:   store,
		metrics: vaultMetrics,
	}, nil
}

// Run starts the HTTP listener and, when configured, a side listener
// exposing /metrics on its own address. It blocks until the main listener
// stops.
func (s *vaultServer) Run() error {
	if s.config.MetricsAddr != "" {
		go s.metrics.Serve(s.config.MetricsAddr)
	}

	log.Printf("vault listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests before closing the listener
// and the user database's connection pool.
func (s *vaultServer) Shutdown(ctx context.Context) {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("error during HTTP shutdown: %v", err)
	}
	if err := s.users.Close(); err != nil {
		log.Printf("error closing user store: %v", err)
	}
}
