package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/api"
	"github.com/modelgate/modelgate/auth"
	"github.com/modelgate/modelgate/config"
	"github.com/modelgate/modelgate/httpclient"
	"github.com/modelgate/modelgate/logger"
	"github.com/modelgate/modelgate/store"
	"github.com/modelgate/modelgate/translator"
	"github.com/modelgate/modelgate/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting ModelGate",
		zap.Int("port", cfg.Port),
		zap.String("store_backend", cfg.StoreBackend),
	)

	tokenStore, err := store.Open(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize token store", zap.Error(err))
	}

	client := httpclient.New(cfg)

	manager := auth.NewManager(tokenStore)
	manager.Register(auth.NewClaudeProvider("", client))
	manager.Register(auth.NewGeminiProvider("", client, oauthFor(cfg, "gemini")))
	manager.Register(auth.NewOpenAIProvider("", client, oauthFor(cfg, "openai")))
	manager.Register(auth.NewQwenProvider("", client))
	manager.Register(auth.NewIFlowProvider("", client))

	translators := translator.NewRegistry()

	upstreams := upstream.NewRegistry(func(ctx context.Context, u *upstream.Upstream) bool {
		status := manager.ValidateToken(ctx, u.Config.Provider, u.Config.KeyID)
		return status == auth.StatusValid || status == auth.StatusRefreshNeeded
	})
	for provider, keys := range cfg.Providers {
		for i, key := range keys {
			upstreams.Add(upstream.Config{
				Name:     fmt.Sprintf("%s-%d", provider, i),
				Provider: provider,
				BaseURL:  key.BaseURL,
				KeyID:    fmt.Sprintf("%s-%d", provider, i),
				Priority: key.Priority,
				Enabled:  key.IsEnabled(),
				Headers:  key.Headers,
			})
		}
	}

	go cleanupLoop(manager)

	mgmt := api.NewManagementAuth(cfg.SecretKey)
	h := api.NewHandler(manager, translators, upstreams, mgmt)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	g := e.Group("/v1")
	h.RegisterRoutes(g)

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server stopped", zap.Error(err))
	}
}

func oauthFor(cfg *config.Config, provider string) *auth.OAuthConfig {
	oc := cfg.OAuthClientFor(provider)
	if oc == nil {
		return nil
	}
	return &auth.OAuthConfig{
		ClientID:     oc.ClientID,
		ClientSecret: oc.ClientSecret,
		RedirectURL:  oc.RedirectURL,
		Scopes:       oc.Scopes,
	}
}

// cleanupLoop prunes expired tokens in the background.
func cleanupLoop(manager *auth.Manager) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		count, err := manager.CleanupExpired(ctx)
		cancel()
		if err != nil {
			logger.Log.Warn("token cleanup failed", zap.Error(err))
			continue
		}
		if count > 0 {
			logger.Log.Info("cleaned up expired tokens", zap.Int("count", count))
		}
	}
}
