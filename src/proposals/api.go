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

	"github.com/daostar/proposals-api/src/proposals/aggregator"
	"github.com/daostar/proposals-api/src/proposals/config"
	"github.com/daostar/proposals-api/src/proposals/data"
	"github.com/daostar/proposals-api/src/proposals/graphql"
	"github.com/daostar/proposals-api/src/proposals/snapshot"
	"github.com/daostar/proposals-api/src/proposals/tally"
	"github.com/daostar/proposals-api/src/proposals/webserver"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	store := data.NewStore(cfg.RedisURL)
	gql := graphql.New(cfg.RetryAttempts, cfg.RetryBase)

	agg := aggregator.New(
		snapshot.New(gql, store, cfg.SnapshotURL, cfg.CacheTTL),
		tally.New(gql, store, cfg.TallyURL, cfg.TallyAPIKey, cfg.CacheTTL),
	)

	router := webserver.New(agg)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Proposals API listening on %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)
}
