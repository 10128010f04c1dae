package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clubhub/internal/app"
	httpserver "clubhub/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, true)
	if err != nil {
		log.Fatalf("❌ startup failed: %v", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	if a.Config.Notifications.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Dispatcher.Run(ctx, a.Config.Notifications.Interval)
		}()
		a.Log.Info("notification dispatcher running every ", a.Config.Notifications.Interval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.Config.HTTP.Port),
		Handler:           httpserver.NewRouter(a.Deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.Log.Info("🚀 Server listening on ", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("server failed: ", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("graceful shutdown failed: ", err)
	}
	// The dispatcher must be done with the database before a.Close runs.
	wg.Wait()
}
