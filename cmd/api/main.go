package main

import (
	"context"
	"log"
	"time"

	"github.com/streamlate/streamlate/internal/config"
	"github.com/streamlate/streamlate/internal/db"
	"github.com/streamlate/streamlate/internal/httpapi"
	"github.com/streamlate/streamlate/internal/store/rabbitmq"
	"github.com/streamlate/streamlate/internal/store/redisstore"
	"github.com/streamlate/streamlate/internal/translate"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	var cache translate.Cache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, translation cache disabled: %v", err)
	} else {
		cache = rds
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async translation disabled: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, cache, pub)

	log.Printf("api listening addr=%s ollama=%s model=%s", cfg.HTTPAddr, cfg.OllamaBaseURL, cfg.OllamaModel)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
