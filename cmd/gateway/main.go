package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"transcribe-gateway/gateway"
	"transcribe-gateway/middleware/ratelimit"
	"transcribe-gateway/middleware/ratelimit/infra"
	"transcribe-gateway/upstream"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(newViper()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Proxy de transcrição: CORS de origem única, rate limit por IP e chave Groq injetada",
		Long: `Encaminha POST /transcribe para a API de transcrição da Groq.

A configuração vem de variáveis de ambiente (GROQ_API_KEY é obrigatória);
as flags abaixo sobrescrevem as variáveis equivalentes.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readConfig(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			log, err := newLogger(cfg.logLevel, cfg.logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return run(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().String("listen", ":8080", "listen address (LISTEN_ADDR)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error (LOG_LEVEL)")
	cmd.Flags().String("log-format", "json", "log format: json, console (LOG_FORMAT)")
	_ = v.BindPFlag("LISTEN_ADDR", cmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("LOG_LEVEL", cmd.Flags().Lookup("log-level"))
	_ = v.BindPFlag("LOG_FORMAT", cmd.Flags().Lookup("log-format"))

	return cmd
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	store := infra.NewWindowStore(cfg.rateLimit, cfg.rateWindow, infra.WithCleanupEvery(cfg.rateCleanupEvery))
	store.StartJanitor(ctx)

	stats, closeStats, err := buildStats(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStats()

	up := upstream.New(cfg.upstreamURL, cfg.apiKey,
		upstream.WithTimeout(cfg.upstreamTimeout),
		upstream.WithPacer(cfg.upstreamRPS, cfg.upstreamBurst),
		upstream.WithLogger(log.Named("upstream")),
	)

	rl := ratelimit.Options{
		Stats:               stats,
		KeyHeader:           cfg.rateKeyHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		AddRateLimitHeaders: cfg.addHeaders,
		Logger:              log.Named("ratelimit"),
	}
	if cfg.rateEnabled {
		rl.Store = store
	}

	h, err := gateway.NewHandler(gateway.Options{
		AllowedOrigin: cfg.allowedOrigin,
		Path:          cfg.path,
		Upstream:      up,
		RateLimit:     rl,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		MaxBodyBytes: cfg.maxBodyBytes,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	// sem WriteTimeout nem ReadTimeout por padrão: upload de áudio e transcrição podem demorar
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.readTimeout,
		IdleTimeout:       90 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.listenAddr, err)
	}

	log.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", up.URL()),
		zap.String("path", cfg.path),
		zap.String("allowed_origin", cfg.allowedOrigin))
	log.Info("rate limit",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.Int("limit", cfg.rateLimit),
		zap.Duration("window", cfg.rateWindow),
		zap.String("key_header", cfg.rateKeyHeader),
		zap.Bool("trust_xff", cfg.trustXFF),
		zap.Duration("cleanup_every", store.CleanupEvery()))
	log.Info("limits",
		zap.Int("concurrency_max", cfg.concurrencyMax),
		zap.Duration("concurrency_timeout", cfg.concurrencyTimeout),
		zap.Duration("read_timeout", cfg.readTimeout),
		zap.Duration("upstream_timeout", cfg.upstreamTimeout),
		zap.Float64("upstream_rps", cfg.upstreamRPS),
		zap.Int64("max_body_bytes", cfg.maxBodyBytes),
		zap.String("stats_backend", cfg.rateStatsBackend))

	if err := serve(ctx, srv, ln, shutdownGrace); err != nil {
		return err
	}
	log.Info("gateway stopped", zap.Int("rate_limit_keys", store.Len()))
	return nil
}

const shutdownGrace = 10 * time.Second

// serve atende em ln até ctx cancelar e só retorna depois que Shutdown terminou de
// drenar as requests em andamento (ou grace estourou).
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
