package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"decrypto/internal/relay"
	"decrypto/internal/store"
	"decrypto/internal/store/memory"
	"decrypto/internal/store/redisstore"
)

func serve(ctx context.Context, cfg *relayConfig) error {
	logger := newLogger(cfg.logLevel, cfg.logFormat)

	logger.Info("starting decrypto relay",
		"version", releaseVersion,
		"backend", cfg.backend,
	)

	var st store.Store
	switch cfg.backend {
	case "redis":
		rs, err := redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.redisAddr,
			Password:  cfg.redisPass,
			DB:        cfg.redisDB,
			KeyPrefix: cfg.redisPrefix,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer rs.Close()
		st = rs
	default:
		ms := memory.New()
		defer ms.Close()
		st = ms
	}

	mux := httprouter.New()

	gateway := relay.NewHandler(st, logger)
	mux.GET("/sync", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gateway.ServeHTTP(w, r)
	})
	mux.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})
	mux.GET("/version", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("relayd v" + releaseVersion + "\n"))
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
