package app

import (
	"fmt"
	"strings"
	"time"

	"edustore/pkg/ai"
	"edustore/pkg/queue"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

// Config holds runtime configuration for the core application. Store,
// Sessions, RefreshTokens, Objects, Generator, and Cleanup may be injected
// (tests do); otherwise the real backends are constructed from the remaining
// fields.
type Config struct {
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	JWTSecret  string
	SessionTTL time.Duration
	RefreshTTL time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPublicURL string
	MinioUseSSL    bool

	GeminiAPIKey string
	GeminiModel  string

	Store         store.Store
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Objects       storage.ObjectStore
	Generator     ai.Generator
	Cleanup       queue.Enqueuer
}

// App wires together persistence, object storage, auth, and the AI tutor.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	objects       storage.ObjectStore
	generator     ai.Generator
	cleanup       queue.Enqueuer
	model         string
	refreshTTL    time.Duration
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	model := strings.TrimSpace(cfg.GeminiModel)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, 2*cfg.RefreshTTL)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			refreshStore = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			refreshStore = store.NewMemoryRefreshTokenStore()
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioPublicURL,
			cfg.MinioUseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	generator := cfg.Generator
	if generator == nil {
		var err error
		generator, err = ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		refreshTokens: refreshStore,
		objects:       objects,
		generator:     generator,
		cleanup:       cfg.Cleanup,
		model:         model,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}
