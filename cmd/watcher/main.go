package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"qmflow/internal/config"
	"qmflow/internal/ingest"
	"qmflow/internal/pagestore"
	"qmflow/internal/storage"
	"qmflow/internal/util"
	"qmflow/internal/watcher"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := util.EnsureDir(cfg.InboxDir); err != nil {
		log.Fatal(err)
	}
	registrar := ingest.NewRegistrar(storage.NewDocumentRepo(db), pagestore.NewFileStore(cfg.DataRoot))
	w, err := watcher.New(registrar, cfg.InboxDir)
	if err != nil {
		log.Fatal(err)
	}
	defer w.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Printf("qmflow watcher inbox=%s data_root=%s", cfg.InboxDir, cfg.DataRoot)
	if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
