package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"review-extractor/internal/types"
)

func newLogger() *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	// LoadConfig also reads .env, so API_PORT can live there
	config := types.LoadConfig()
	logger := newLogger()

	// Get port from environment variable, default to 8080
	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
		fmt.Printf("Using port from environment variable API_PORT: %s\n", serverPort)
	} else {
		fmt.Printf("No API_PORT environment variable found, using default: %s\n", serverPort)
	}

	server := NewServer(config, logger)

	logger.Infof("Starting API server on port %s", serverPort)
	logger.Info("Available endpoints:")
	logger.Info("  POST /scrape  - Collect reviews for one company and source")
	logger.Info("  GET  /health  - Health check")
	logger.Info("  GET  /metrics - Prometheus metrics")

	srv := &http.Server{
		Addr:              ":" + serverPort,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
