package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/config"
	"github.com/maltedev/price-comparison-scraper/internal/detector"
)

func main() {
	var (
		searchURL = flag.String("url", "", "Competitor search results URL")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
		settle    = flag.Duration("settle", 3*time.Second, "Wait after navigation before analysing the page")
	)
	flag.Parse()

	if *searchURL == "" {
		fmt.Println("Please provide a search URL with -url")
		flag.Usage()
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	opts := cfg.BrowserOptions()
	opts.Headless = *headless && cfg.Browser.Headless

	d := detector.New(browser.NewLauncher(opts, logger), *settle, cfg.Browser.Timeout, logger)

	detected, err := d.Detect(ctx, *searchURL)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if detected == nil {
		logger.Warn("no product grid detected", "url", *searchURL)
		_ = enc.Encode(map[string]bool{"detected": false})
		os.Exit(2)
	}

	if err := enc.Encode(detected); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}
