package main

import (
	"log"
	"net/http"

	"qmflow/internal/api"
	"qmflow/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("qmflow api listening on %s store=%s provider=%s", cfg.APIAddr, cfg.Store, cfg.AIProvider)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
