package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mcpbridge/internal/config"
	healthctrl "github.com/dropDatabas3/mcpbridge/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/mcpbridge/internal/http/controllers/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/http/router"
	oauthsvc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/idp"
	"github.com/dropDatabas3/mcpbridge/internal/metrics"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/platform"
	"github.com/dropDatabas3/mcpbridge/internal/rate"
	"github.com/dropDatabas3/mcpbridge/internal/security/keys"
	"github.com/dropDatabas3/mcpbridge/internal/security/secretbox"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
	"github.com/dropDatabas3/mcpbridge/internal/store/memory"
	"github.com/dropDatabas3/mcpbridge/internal/store/pg"
	"github.com/dropDatabas3/mcpbridge/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		// Logger todavía no inicializado.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL")})
	defer func() { _ = logger.Sync() }()
	log := logger.L().With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deriver, err := keys.NewDeriver(cfg.Security.ServerSecret)
	if err != nil {
		log.Fatal("server secret rejected", logger.Err(err))
	}
	stateKey, err := deriver.StateSigningKey()
	if err != nil {
		log.Fatal("state key derivation failed", logger.Err(err))
	}
	credKey, err := deriver.CredentialKey()
	if err != nil {
		log.Fatal("credential key derivation failed", logger.Err(err))
	}
	cipher, err := secretbox.New(credKey)
	if err != nil {
		log.Fatal("credential cipher init failed", logger.Err(err))
	}

	repo, err := buildRepository(ctx, cfg)
	if err != nil {
		log.Fatal("storage init failed", logger.Err(err))
	}
	defer repo.Close()
	log.Info("storage ready", logger.String("driver", cfg.Storage.Driver))

	limiter := buildLimiter(cfg)

	provider := idp.New(idp.Config{
		AuthorizeURL: cfg.IdP.AuthorizeURL,
		TokenURL:     cfg.IdP.TokenURL,
		VerifyURL:    cfg.IdP.VerifyURL,
		ClientID:     cfg.IdP.ClientID,
		ClientSecret: cfg.IdP.ClientSecret,
		Scopes:       cfg.IdP.Scopes,
	})
	issuer := platform.New(platform.Config{
		BaseURL: cfg.Platform.BaseURL,
		APIKey:  cfg.Platform.APIKey,
	})

	services := oauthsvc.NewServices(oauthsvc.Deps{
		Repo:                repo,
		Codec:               oauthsvc.NewStateCodec(stateKey, cfg.StateTTLDur()),
		Cipher:              cipher,
		IdP:                 provider,
		Issuer:              issuer,
		RequireRegistration: cfg.Security.RequireRegistration,
	})

	if err := metrics.Register(nil); err != nil {
		log.Fatal("metrics registration failed", logger.Err(err))
	}

	handler := router.New(router.Deps{
		OAuth: oauthctrl.NewControllers(services, oauthctrl.ControllerDeps{
			PublicURL: cfg.Server.PublicURL,
		}),
		Health:  healthctrl.NewHealthController(repo),
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweep.New(repo, cfg.SweepIntervalDur()).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited with error", logger.Err(err))
	}
	log.Info("server stopped")
}

func buildRepository(ctx context.Context, cfg *config.Config) (core.Repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(), nil
	default:
		var lifetime time.Duration
		if cfg.Storage.Postgres.ConnMaxLifetime != "" {
			lifetime, _ = time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		}
		return pg.New(ctx, pg.Config{
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
			ConnMaxLifetime: lifetime,
		})
	}
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled || cfg.Redis.Addr == "" {
		return nil
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return rate.NewRedisLimiter(client, cfg.Redis.Prefix, cfg.Rate.MaxRequests, cfg.RateWindowDur())
}
