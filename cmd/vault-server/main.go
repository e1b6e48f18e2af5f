package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	config := loadConfig()

	log.Println("=== filevault ===")
	log.Printf("listen address: %s:%s", config.Host, config.Port)
	log.Printf("database: %s", config.DBPath)
	log.Printf("S3 bucket: %s (region %s)", config.S3Bucket, config.S3Region)

	server, err := newVaultServer(config)
	if err != nil {
		log.Fatalf("failed to start vault: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Println("vault started successfully")
	<-sigChan
	log.Println("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)

	log.Println("vault stopped")
}
