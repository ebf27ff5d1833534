package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"scanstation/internal/config"
	"scanstation/internal/history"
	"scanstation/internal/queue"
	"scanstation/internal/store"
)

// Worker consumes scan outcomes from the queue and writes the audit trail.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "scanstation:events")
	}

	repo := history.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for scan outcomes...")
	for msg := range messages {
		if msg.Type != "scan" {
			continue
		}

		var evt history.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("decode scan outcome failed: %v", err)
			continue
		}

		stored, err := repo.InsertEvent(ctx, evt)
		if err != nil {
			log.Printf("insert scan outcome failed: %v", err)
			continue
		}
		log.Printf("recorded scan %s route=%s ok=%v", stored.ID, stored.Route, stored.OK)
	}

	log.Println("worker stopped")
}
