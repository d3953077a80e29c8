package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-interrogation/backend/internal/config"
	"github.com/zhouzirui/z-interrogation/backend/internal/handler"
	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/narrative"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	scripts, err := loadScripts(cfg.Scene.ScriptDir)
	if err != nil {
		log.Fatalf("failed to load scripts: %v", err)
	}

	subjects := scene.NewMemoryStore(scene.Seed())
	for _, sub := range subjects.List() {
		if _, ok := scripts.Script(sub.ScriptID); !ok {
			log.Fatalf("subject %s references missing script %q", sub.ID, sub.ScriptID)
		}
	}

	sessions := interrogation.NewService(subjects, scripts, cfg.Scene)
	if !cfg.Scene.MeterEnabled {
		log.Println("检测条已关闭，fill/speed/reset 标签将被忽略")
	}

	router := handler.NewRouter(subjects, sessions)

	startServer(ctx, cfg.Server, router)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: sessions did not stop cleanly: %v", err)
	}
}

func loadScripts(dir string) (*narrative.Library, error) {
	if dir == "" {
		return narrative.NewLibrary()
	}
	log.Printf("loading scripts from %s", dir)
	return narrative.LoadDir(dir)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("interrogation backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
