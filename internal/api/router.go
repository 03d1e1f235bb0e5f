package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remembernow/agentd/internal/agentapi"
	"github.com/remembernow/agentd/internal/api/handlers"
	mw "github.com/remembernow/agentd/internal/api/middleware"
	"github.com/remembernow/agentd/internal/config"
	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/queue"
	"github.com/remembernow/agentd/internal/service"
	"github.com/remembernow/agentd/internal/store"
	"go.uber.org/zap"
)

// App holds the router and the provisioning worker for lifecycle management.
type App struct {
	Router       *chi.Mux
	Worker       *queue.Worker
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	userStore := store.NewUserStore(db)
	jobStore := store.NewJobStore(db)

	// External agent service client
	agentClient := agentapi.NewClient(config.AgentServiceURL(), config.AgentServiceAPIKey())
	logger.Info("agent service client initialized", zap.String("base_url", config.AgentServiceURL()))

	// Queue
	jobQueue := queue.New(jobStore)

	// Services
	agentCfg := service.DefaultAgentConfig(config.AgentModel(), config.AgentEmbedding())
	provider := service.NewAgentProvider(agentClient, userStore, agentCfg, logger)
	provisioner := service.NewProvisioner(provider, logger)
	userSvc := service.NewUserService(userStore, jobQueue, logger)
	chatSvc := service.NewChatService(agentClient, provider, logger)

	// Provisioning worker
	worker := queue.NewWorker(jobStore, provisioner.Handle, queue.DefaultOptions(), logger)
	worker.SetConcurrency(config.WorkerCount())
	worker.SetPollInterval(config.WorkerPollInterval())

	// Handlers
	userHandler := handlers.NewUserHandler(userSvc)
	agentHandler := handlers.NewAgentHandler(chatSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Worker:    worker,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetByID)
				r.Put("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)

				// The user's agent, provisioned lazily on first access
				r.Route("/agent", func(r chi.Router) {
					r.Get("/", agentHandler.GetInfo)
					r.Post("/messages", agentHandler.SendMessage)
					r.Get("/messages", agentHandler.GetMessages)
					r.Route("/blocks", func(r chi.Router) {
						r.Get("/", agentHandler.ListBlocks)
						r.Post("/", agentHandler.CreateBlock)
						r.Route("/{label}", func(r chi.Router) {
							r.Get("/", agentHandler.GetBlock)
							r.Patch("/", agentHandler.UpdateBlock)
							r.Delete("/", agentHandler.DeleteBlock)
						})
					})
				})
			})
		})
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.UserStore   = (*store.UserStore)(nil)
	_ domain.JobStore    = (*store.JobStore)(nil)
	_ domain.AgentClient = (*agentapi.Client)(nil)
)
