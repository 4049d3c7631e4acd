package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examhall/internal/auth"
	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/handler"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/llm"
	"github.com/pavelanni/examhall/internal/llm/prompts"
	"github.com/pavelanni/examhall/internal/notify"
)

const (
	defaultTokenTTL = 12 * time.Hour
	notifyTimeout   = 15 * time.Second
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addCommonFlags(f)
	addTokenFlags(f)
	f.Duration("submit-grace", exam.DefaultSubmitGrace, "How long after an exam closes submissions are still accepted")
	f.StringP("lang", "l", "en", "Fallback language for error messages (en, ru)")
	f.String("notify-url", "", "Webhook URL for notifications (empty logs them instead)")
	f.String("notify-secret", "", "Bearer token sent with notification webhooks")
	f.String("close-sweep", "@every 1m", "Cron schedule for announcing closed exams (empty disables)")
	f.String("llm-url", "", "OpenAI-compatible API base URL for review suggestions (empty disables)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Review prompt variant (strict, standard, lenient)")
	f.String("admin-password", "", "Initial admin password (or set EXAMHALL_ADMIN_PASSWORD)")
	return cmd
}

func newIssuer(v *viper.Viper) (*auth.Issuer, error) {
	return auth.NewIssuer(
		v.GetString("jwt-secret"),
		v.GetString("jwt-issuer"),
		v.GetString("jwt-audience"),
		v.GetDuration("token-ttl"),
	)
}

func newPublisher(v *viper.Viper) notify.Publisher {
	var pub notify.Publisher = notify.LogPublisher{}
	if url := v.GetString("notify-url"); url != "" {
		pub = notify.NewWebhook(url, v.GetString("notify-secret"), notifyTimeout)
		slog.Info("notifications via webhook", "url", url)
	}
	return notify.Async(pub, notifyTimeout)
}

func newReviewer(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	url := v.GetString("llm-url")
	if url == "" {
		slog.Info("review assistant disabled")
		return nil, nil
	}
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	client, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), variant)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("LLM health check failed, suggestions may be unavailable", "url", url, "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}
	return client, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	examCount, err := db.ExamCount(ctx)
	if err != nil {
		return fmt.Errorf("count exams: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	tokens, err := newIssuer(v)
	if err != nil {
		return fmt.Errorf("configure tokens: %w", err)
	}

	opts := []exam.Option{exam.WithSubmitGrace(v.GetDuration("submit-grace"))}
	reviewer, err := newReviewer(ctx, v)
	if err != nil {
		return err
	}
	if reviewer != nil {
		opts = append(opts, exam.WithReviewer(reviewer))
	}
	svc := exam.New(db, newPublisher(v), opts...)

	if schedule := v.GetString("close-sweep"); schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() {
			if _, err := svc.CloseExpired(ctx); err != nil {
				slog.Error("close sweep failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule close sweep %q: %w", schedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	h := handler.New(db, svc, tokens)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"exams", examCount,
		"lang", lang,
		"submit_grace", v.GetDuration("submit-grace"),
		"close_sweep", v.GetString("close-sweep"),
		"review_assistant", reviewer != nil,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
