package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/plataa/triagem/internal/api"
	"github.com/plataa/triagem/internal/config"
	"github.com/plataa/triagem/internal/middleware"
	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "triagem",
		Short:        "Autism screening questionnaires: scoring, subjects and reports",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(scoreCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stdout)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the root logger. LOG_FORMAT=json writes one JSON object
// per line; anything else uses the console writer.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	w := out
	if !strings.EqualFold(cfg.LogFormat, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "triagem").Logger()
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	engine, err := screening.DefaultEngine()
	if err != nil {
		return fmt.Errorf("load questionnaires: %w", err)
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("close store")
		}
	}()

	if cfg.JWTSecret == "" && cfg.IsDev() {
		logger.Warn().Msg("JWT_SECRET not set, using the development signing key")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, store, engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Str("env", cfg.Env).Msg("triagem listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newHandler(cfg *config.Config, store api.Store, engine *screening.Engine, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	api.NewRouter(store, engine, middleware.NewTokenIssuer(cfg.JWTSecret), cfg.TokenTTL, logger).Register(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		locale := middleware.LocaleFromContext(r.Context())
		status := http.StatusOK
		ok := true
		if err := store.Ping(r.Context()); err != nil {
			logger.Error().Err(err).Msg("health: store ping")
			status = http.StatusServiceUnavailable
			ok = false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         ok,
			"name":       "Triagem API",
			"locale":     locale,
			"msg":        utils.T(locale, "health.ok"),
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     cfg.Commit,
			"build_time": cfg.BuildTime,
		})
	})

	// Frontend serving strategy (priority):
	// 1) Static files if STATIC_DIR is set
	// 2) Dev proxy if DEV_FRONTEND_URL is set
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	} else if cfg.DevFrontendURL != "" {
		if u, err := url.Parse(cfg.DevFrontendURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			rp.ModifyResponse = func(res *http.Response) error {
				middleware.SetNoStore(res.Header)
				return nil
			}
			mux.Handle("/", rp)
		} else {
			logger.Warn().Err(err).Str("url", cfg.DevFrontendURL).Msg("invalid DEV_FRONTEND_URL")
		}
	}

	return middleware.Chain(mux,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.SecureHeaders,
		middleware.NoStore,
		middleware.LocaleMiddleware,
	)
}
