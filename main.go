package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// hash-password prints the value for ARENA_ADMIN_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	journal, err := OpenJournal(cfg.DBPath)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}

	world := NewWorld(cfg.World(), newRand(cfg.Seed), cfg.InitialFood)
	hub := NewHub(cfg, world, journal)
	admin := NewAdminAuth(cfg.AdminPasswordHash, cfg.AdminSecret)

	ctx, cancel := context.WithCancel(context.Background())
	sched := NewScheduler(hub, cfg)
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: SetupRoutes(hub, admin)}

	go func() {
		log.Printf("Server starting on %s (ws endpoint: /ws)", cfg.Addr)
		if cfg.DBPath != "" {
			log.Printf("Recording events to %s", cfg.DBPath)
		}
		if admin == nil {
			log.Printf("Admin endpoints disabled (no ARENA_ADMIN_PASSWORD_HASH)")
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	cancel()
	<-done

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := journal.Close(); err != nil {
		log.Printf("journal close: %v", err)
	}
}
