package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"go-jdcrawler/internal/api"
	"go-jdcrawler/internal/app"
	"go-jdcrawler/internal/config"
	"go-jdcrawler/internal/scheduler"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	flag.Parse()

	//load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to start: %v", err)
	}
	defer a.Close()

	interval := cfg.Schedule.Interval
	if interval < time.Minute {
		interval = config.Default().Schedule.Interval
	}
	sched, err := scheduler.New(a.Crawler, interval)
	if err != nil {
		log.Fatalf("❌ Failed to create scheduler: %v", err)
	}
	if cfg.Schedule.Enabled {
		if err := sched.Start(cfg.Schedule.RunOnStart); err != nil {
			log.Fatalf("❌ Failed to start scheduler: %v", err)
		}
	} else {
		log.Println("⏸️ Scheduled crawling disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(a.Store, a.Crawler, sched), cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 JD Crawler API listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}
	sched.Stop(shutdownCtx)

	log.Println("🏁 Server stopped.")
}
