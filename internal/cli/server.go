package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/config"
	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/infra/memory"
	"dus-exam-service/internal/infra/postgres"
	infraredis "dus-exam-service/internal/infra/redis"
	"dus-exam-service/internal/logger"
	transport "dus-exam-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.ExamLoader = memory.NewStaticExamLoader(sampleExams())
	var results app.ResultStore = memory.NewResultStore()
	if pool != nil {
		loader = postgres.NewExamLoader(pool)
		results = postgres.NewResultStore(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Exam.CacheTTL, 10*time.Minute)
	var exams app.ExamRepository
	if redisClient != nil {
		exams = infraredis.NewExamRepository(redisClient, loader, cacheTTL)
	} else {
		exams = memory.NewExamRepository(loader, cacheTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	service := app.NewExamService(sessions, exams, results, log,
		app.WithTickInterval(config.TTLDuration(cfg.Exam.Tick, time.Second)))
	if cfg.Admin.Token == "" {
		log.Warn().Msg("admin token not configured, admin endpoints are disabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/exam", transport.NewWSHandler(service, log).ServeWS)
	transport.NewRESTHandler(service, cfg.Admin.Token, log).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", finalPort).
			Bool("postgres", pool != nil).
			Bool("redis", redisClient != nil).
			Msg("starting exam service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleExams is the demo exam served when no Postgres is configured.
func sampleExams() map[string]domain.Exam {
	opts := func(o ...string) []string { return o }
	return map[string]domain.Exam{
		"deneme-1": {
			ID:              "deneme-1",
			Title:           "DUS Deneme Sınavı 1",
			DurationMinutes: 15,
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "Maksiller sinüsün drenajı hangi meatusa olur?",
					Category:      domain.CategoryFoundational,
					Lesson:        "Anatomi",
					Options:       opts("Meatus nasi superior", "Meatus nasi medius", "Meatus nasi inferior", "Recessus sphenoethmoidalis", "Ductus nasolacrimalis"),
					CorrectOption: 1,
				},
				{
					ID:            "q2",
					Text:          "Kollajen sentezinde C vitamini hangi enzimin kofaktörüdür?",
					Category:      domain.CategoryFoundational,
					Lesson:        "Biyokimya",
					Options:       opts("Lizil oksidaz", "Prolil hidroksilaz", "Kollajenaz", "Peptidil transferaz", "Glikoziltransferaz"),
					CorrectOption: 1,
				},
				{
					ID:            "q3",
					Text:          "Kök kanal tedavisinde çalışma boyu en güvenilir hangi yöntemle belirlenir?",
					Category:      domain.CategoryClinical,
					Lesson:        "Endodonti",
					Options:       opts("Taktil his", "Ortalama diş boyu", "Elektronik apeks bulucu", "Hasta hissi", "Kağıt kon"),
					CorrectOption: 2,
				},
				{
					ID:            "q4",
					Text:          "Sınıf II div 1 maloklüzyonda en sık görülen bulgu hangisidir?",
					Category:      domain.CategoryClinical,
					Lesson:        "Ortodonti",
					Options:       opts("Artmış overjet", "Çapraz kapanış", "Açık kapanış", "Negatif overjet", "Diastema"),
					CorrectOption: 0,
				},
			},
		},
	}
}
