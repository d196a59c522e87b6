package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-course-advisor/internal/config"
	"gator-course-advisor/internal/infra/adapters/search"
	"gator-course-advisor/internal/infra/logging"
)

func main() {
	port := flag.Int("port", 5000, "listen port")
	delay := flag.Duration("delay", 0, "artificial latency added to every search")
	dev := flag.Bool("dev", true, "console logging")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "debug", Format: "json"}, *dev)
	catalog := search.NewCatalog(*delay)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           search.NewMockHandler(catalog, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Int("courses", catalog.Len()).Dur("delay", *delay).Msg("mock search listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("mock search server")
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
