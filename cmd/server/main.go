package main

import (
	"context"
	"log"

	"github.com/fortifile/fortifile/internal/server"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
