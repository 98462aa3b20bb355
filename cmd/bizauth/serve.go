package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/httpapi"
	"github.com/MrEthical07/bizAuth/internal/config"
	"github.com/MrEthical07/bizAuth/internal/observability"
	"github.com/MrEthical07/bizAuth/internal/telemetry"
	otelexport "github.com/MrEthical07/bizAuth/metrics/export/otel"
	"github.com/MrEthical07/bizAuth/oauth"
	"github.com/MrEthical07/bizAuth/store"
	"github.com/MrEthical07/bizAuth/store/memstore"
	"github.com/MrEthical07/bizAuth/store/mongostore"
	"github.com/MrEthical07/bizAuth/store/pgstore"
)

type serveOptions struct {
	dev bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		PreRunE: func(*cobra.Command, []string) error {
			if opts.dev {
				return applyDevDefaults()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(newServeApp(opts))
		},
	}

	cmd.Flags().BoolVar(&opts.dev, "dev", false, "in-memory store, embedded redis and a throwaway signing key unless configured")
	return cmd
}

// applyDevDefaults fills what a local run needs without external services.
func applyDevDefaults() error {
	defaults := map[string]string{
		"APP_ENV":        "development",
		"STORE_DRIVER":   config.DriverMemory,
		"SECURE_COOKIES": "false",
	}
	for k, v := range defaults {
		if _, ok := os.LookupEnv(k); !ok {
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	if os.Getenv("JWT_SECRET_KEY") == "" {
		var raw [32]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return err
		}
		return os.Setenv("JWT_SECRET_KEY", hex.EncodeToString(raw[:]))
	}
	return nil
}

func newServeApp(opts *serveOptions) *fx.App {
	return fx.New(
		fx.Supply(opts),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newRedisClient,
			newCredentialStore,
			newOAuthProvider,
			newEngine,
			newHandler,
			httpapi.NewRouter,
			newHTTPServer,
		),
		fx.Invoke(useTelemetry, initSentry, registerOTelMetrics, startHTTPServer),
	)
}

func runApp(app *fx.App) error {
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	sig := <-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("exited with code %d", sig.ExitCode)
	}
	return nil
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})
	return provider, nil
}

func useTelemetry(*telemetry.Provider) {}

func initSentry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) error {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, version); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	if cfg.SentryDSN != "" {
		logger.Info("sentry enabled", zap.String("environment", cfg.Environment))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			observability.FlushSentry()
			return nil
		},
	})
	return nil
}

// newRedisClient starts an embedded miniredis in --dev mode when REDIS_ADDR
// is not set.
func newRedisClient(lc fx.Lifecycle, cfg config.Config, opts *serveOptions, logger *zap.Logger) (redis.UniversalClient, error) {
	addr := cfg.RedisAddr
	var embedded *miniredis.Miniredis
	if _, set := os.LookupEnv("REDIS_ADDR"); opts.dev && !set {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		embedded = mr
		addr = mr.Addr()
		logger.Warn("using embedded redis", zap.String("addr", addr))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			err := client.Close()
			if embedded != nil {
				embedded.Close()
			}
			return err
		},
	})
	return client, nil
}

func newCredentialStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Disconnect(ctx)
			},
		})
		logger.Info("credential store ready", zap.String("driver", cfg.StoreDriver), zap.String("database", cfg.MongoDatabase))
		return s, nil

	case config.DriverPostgres:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
		logger.Info("credential store ready", zap.String("driver", cfg.StoreDriver))
		return pgstore.New(pool), nil

	case config.DriverMemory:
		logger.Warn("using in-memory credential store; data is lost on exit")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// newOAuthProvider returns a nil provider when Google sign-in is not
// configured; the OAuth routes then answer 500.
func newOAuthProvider(cfg config.Config, logger *zap.Logger) (bizAuth.OAuthProvider, error) {
	if !cfg.OAuthEnabled() {
		logger.Warn("google oauth disabled: CLIENT_ID or REDIRECT_URI missing")
		return nil, nil
	}
	client, err := oauth.New(cfg.OAuth())
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	return client, nil
}

func newEngine(
	lc fx.Lifecycle,
	cfg config.Config,
	rdb redis.UniversalClient,
	credentials store.Store,
	provider bizAuth.OAuthProvider,
	logger *zap.Logger,
) (*bizAuth.Engine, error) {
	b := bizAuth.New().
		WithConfig(cfg.Engine()).
		WithRedis(rdb).
		WithStore(credentials).
		WithLogger(logger.Named("engine")).
		WithAuditSink(bizAuth.NewZapSink(logger.Named("audit")))
	if provider != nil {
		b = b.WithOAuthProvider(provider)
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			engine.Close()
			return nil
		},
	})
	return engine, nil
}

func newHandler(cfg config.Config, engine *bizAuth.Engine, logger *zap.Logger) (*httpapi.Handler, error) {
	return httpapi.NewHandler(cfg.HTTP(), engine, logger.Named("http"))
}

func registerOTelMetrics(lc fx.Lifecycle, engine *bizAuth.Engine) error {
	exporter, err := otelexport.NewExporter(otel.Meter("github.com/MrEthical07/bizAuth"), engine)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return exporter.Close()
		},
	})
	return nil
}

func startHTTPServer(lc fx.Lifecycle, srv *httpServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				defer close(done)
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
