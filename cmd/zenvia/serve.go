package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/internal/api"
	"github.com/LeventeLantos/zenvia-go/internal/cache"
	"github.com/LeventeLantos/zenvia-go/internal/config"
	"github.com/LeventeLantos/zenvia-go/internal/repo"
	"github.com/LeventeLantos/zenvia-go/internal/scheduler"
	"github.com/LeventeLantos/zenvia-go/internal/service"
	"github.com/LeventeLantos/zenvia-go/model"
	"github.com/LeventeLantos/zenvia-go/webhook"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive webhook events and keep their subscriptions registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	zc, err := client.New(cfg.Zenvia.ClientConfig(logger))
	if err != nil {
		return err
	}
	defer zc.Close()

	var (
		dedup cache.EventDeduper
		sent  cache.MessageCache
		store repo.EventRepository
	)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		rc := cache.NewRedisCache(rdb, cfg.Redis.TTL)
		dedup, sent = rc, rc
	}

	if cfg.Database.Enabled {
		db, err := sql.Open("pgx", cfg.Database.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		pr := repo.NewPostgresEventRepo(db)
		if err := pr.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pr
	}

	sink := service.NewEventSink(dedup, store, logger)

	onMessage := logMessageEvent(logger)
	if cfg.AutoReply.Enabled {
		replier := service.NewAutoReplier(zc, cfg.AutoReply.Text, cfg.AutoReply.ContentMax).
			WithHooks(recordReply(sent, logger), logReplyFailure(logger))
		onMessage = replier.HandleMessage
	}

	controller := webhook.New(webhook.Config{
		MessageEventHandler:       sink.MessageHandler(onMessage),
		MessageStatusEventHandler: sink.MessageStatusHandler(logStatusEvent(logger)),
		Path:                      cfg.Webhook.Path,
		Client:                    zc,
		URL:                       cfg.Webhook.URL,
		Channel:                   cfg.Webhook.Channel,
		Logger:                    logger,
	})
	if err := controller.Init(ctx); err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if cfg.Reconcile.Interval > 0 && controller.Manages() {
		sched, err = scheduler.New(cfg.Reconcile.Interval, controller.Reconcile,
			scheduler.WithName("reconcile"),
			scheduler.WithLogger(logger),
			scheduler.WithoutImmediateTick(),
		)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(api.NewHandler(sched, store, controller), controller)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("zenvia webhook receiver starting",
			"addr", cfg.Server.Address,
			"path", controller.Path(),
			"manages_subscriptions", controller.Manages(),
			"auto_reply", cfg.AutoReply.Enabled,
			"redis", cfg.Redis.Enabled,
			"postgres", cfg.Database.Enabled,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logMessageEvent(logger *slog.Logger) webhook.MessageEventHandler {
	return func(ctx context.Context, e *model.MessageEvent) error {
		logger.Info("message received",
			"id", e.ID,
			"channel", e.Channel,
			"direction", e.Direction,
			"from", e.Message.From,
			"contents", len(e.Message.Contents),
		)
		return nil
	}
}

func logStatusEvent(logger *slog.Logger) webhook.MessageStatusEventHandler {
	return func(ctx context.Context, e *model.MessageStatusEvent) error {
		logger.Info("message status received",
			"id", e.ID,
			"message_id", e.MessageID,
			"code", e.MessageStatus.Code,
			"description", e.MessageStatus.Description,
		)
		return nil
	}
}

func recordReply(sent cache.MessageCache, logger *slog.Logger) func(context.Context, *model.Message) error {
	return func(ctx context.Context, reply *model.Message) error {
		logger.Info("auto-reply sent", "message_id", reply.ID, "channel", reply.Channel, "to", reply.To)
		if sent == nil {
			return nil
		}
		return sent.StoreSent(ctx, reply.ID, reply.Channel, time.Now())
	}
}

func logReplyFailure(logger *slog.Logger) func(context.Context, *model.MessageEvent, string) error {
	return func(ctx context.Context, inbound *model.MessageEvent, reason string) error {
		logger.Warn("auto-reply failed", "event_id", inbound.ID, "from", inbound.Message.From, "reason", reason)
		return nil
	}
}
