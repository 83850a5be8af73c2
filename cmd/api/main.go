package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/shortreel/internal/api"
	"github.com/bobarin/shortreel/internal/app"
	"github.com/bobarin/shortreel/internal/config"
	"github.com/bobarin/shortreel/internal/db"
	"github.com/bobarin/shortreel/internal/queue"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/bobarin/shortreel/internal/worker"
)

func main() {
	log.Println("Starting Shortreel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Job store: Postgres when configured, otherwise in memory
	var jobStore store.Store
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.Migrate(migrateCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("Connected to database")
		jobStore = database
	} else {
		log.Println("No DATABASE_URL set, jobs are kept in memory")
		jobStore = store.NewMemory()
	}

	publisher, local, err := app.NewPublisher(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize publisher: %v", err)
	}

	w, err := app.NewWorker(cfg, jobStore, publisher)
	if err != nil {
		log.Fatalf("Failed to initialize worker: %v", err)
	}

	// Jobs outlive the request that submitted them
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Runner: Redis queue when reachable, otherwise in-process
	var inProcess *worker.InProcessRunner
	queueDone := make(chan struct{})
	close(queueDone)

	var q *queue.Queue
	if cfg.RedisURL != "" {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: Redis unavailable (%v), running jobs in-process", err)
			q = nil
		}
	}

	if q != nil {
		defer q.Close()
		if n, err := q.Len(context.Background()); err == nil {
			log.Printf("Connected to Redis queue (%d render jobs waiting)", n)
		}
		if cfg.DatabaseURL == "" {
			log.Println("WARNING: queue consumers in other processes cannot see in-memory jobs; set DATABASE_URL")
		}

		qr := worker.NewQueueRunner(q, w.Run)
		w.SetRunner(qr)

		if cfg.WorkerEnabled {
			log.Println("Worker enabled, starting background processing...")
			queueDone = make(chan struct{})
			go func() {
				defer close(queueDone)
				qr.Start(workerCtx, cfg.MaxConcurrentJobs)
			}()
		}
	} else {
		inProcess = worker.NewInProcessRunner(workerCtx, w.Run)
		w.SetRunner(inProcess)
	}

	// Create API handler
	handler := api.NewHandler(w)
	routerCfg := api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	}
	if local != nil {
		routerCfg.OutputDir = local.Dir()
	}
	router := api.NewRouter(handler, routerCfg)

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Running jobs see the cancellation and are recorded as failed
	workerCancel()
	<-queueDone
	if inProcess != nil {
		inProcess.Wait()
	}

	log.Println("Server exited")
}
