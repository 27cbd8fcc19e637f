package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/autellog/internal/common"
	"example.com/autellog/internal/config"
	"example.com/autellog/internal/report"
	"example.com/autellog/internal/server"
	"example.com/autellog/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	noStore := flag.Bool("no-store", false, "disable the flight database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("config %s not found, using defaults", *configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		log.Fatalf("storage dir: %v", err)
	}
	if cfg.Logs.FileName == "" {
		cfg.Logs.FileName = "auteld.log"
	}
	logCloser, err := common.SetupLogging(os.Stdout, cfg.Logs)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logCloser.Close()

	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	if *addr != "" {
		listenAddr = *addr
	}
	var st *store.Store
	if !*noStore {
		st = store.New(cfg.Database)
		defer st.Close()
	}
	srv, err := server.NewServer(server.Options{
		StorageDir:     cfg.StorageDir,
		Concurrency:    cfg.Concurrency,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Store:          st,
		Lang:           report.Language(cfg.Lang),
	})
	if err != nil {
		log.Fatalf("server init: %v", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(srv),
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}

	log.Printf("auteld listening on %s (workers=%d, store=%s)", listenAddr, cfg.Concurrency, storeLabel(st, cfg.Database))
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("auteld stopped")
}

func storeLabel(st *store.Store, path string) string {
	if st == nil {
		return "disabled"
	}
	return path
}
