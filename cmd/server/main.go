package main

import (
	"log"

	"github.com/aviator-games/aviator-server/config"
	"github.com/aviator-games/aviator-server/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env so DATABASE_URL is set: cwd .env or project root .env
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg := config.Load()
	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
