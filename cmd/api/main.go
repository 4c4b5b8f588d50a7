package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"inkshelf.org/internal/content"
	"inkshelf.org/internal/httpapi"
	"inkshelf.org/internal/moderation"
	"inkshelf.org/internal/obs"
	"inkshelf.org/internal/store/memory"
	"inkshelf.org/internal/store/pg"
	"inkshelf.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		modStore  moderation.Store
		contStore content.Store
		probe     httpapi.ReadyProbe
		pgStore   *pg.Store
	)
	if dsn := os.Getenv("INKSHELF_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		modStore = pgStore
		contStore = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("INKSHELF_PG_DSN not set, using in-memory store")
		mem := memory.New()
		modStore = mem
		contStore = mem
	}

	events := stream.New()
	mod := moderation.NewService(modStore, moderation.WithStream(events))
	cont := content.NewService(contStore)

	api := httpapi.New(mod, cont, events, probe, version)

	addr := os.Getenv("INKSHELF_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE subscribers hold the response open
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting inkshelf-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
