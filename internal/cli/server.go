package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quizroom-service/internal/app"
	"quizroom-service/internal/config"
	"quizroom-service/internal/infra/memory"
	pgregistry "quizroom-service/internal/infra/postgres"
	redisregistry "quizroom-service/internal/infra/redis"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	registryTTL := config.TTLDuration(cfg.Room.RegistryTTL, 2*time.Hour)

	var registry app.RoomRegistry = memory.NewRoomRegistry(registryTTL)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		registry = pgregistry.NewRoomRegistry(pool, registryTTL)
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		registry = redisregistry.NewRoomRegistry(redisClient, registry, cacheTTL)
	}

	opts := app.Options{
		PointsPerCorrect:  cfg.Room.PointsPerCorrect,
		AnswerSlack:       config.TTLDuration(cfg.Room.AnswerSlack, 0),
		RevealGrace:       config.TTLDuration(cfg.Room.RevealGrace, 0),
		ReaperInterval:    config.TTLDuration(cfg.Room.ReaperInterval, 0),
		InactivityTimeout: config.TTLDuration(cfg.Room.InactivityTimeout, 0),
		DefaultTimeLimit:  cfg.Room.DefaultTimeLimit,
	}

	service := app.NewRoomService(registry, app.NewHub(), opts)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	service.StartReaper(reaperCtx)

	wsHandler := transport.NewWSHandler(service)
	roomHandler := transport.NewRoomHandler(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("POST /rooms", roomHandler.CreateRoom)
	mux.HandleFunc("GET /rooms/{code}", roomHandler.GetRoom)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		zlog.Info().Str("port", finalPort).Msg("starting quiz room service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		zlog.Info().Msg("shutting down server")
	case <-ctx.Done():
		zlog.Info().Msg("context canceled, shutting down server")
	}
	stopReaper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
