// Command kgqa answers natural-language questions from a knowledge graph.
//
// It runs as an HTTP server by default. One-shot modes ingest triplets,
// print statistics, ask a question, refresh the index or run raw Cypher.
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

	"github.com/smallnest/kgqa/log"
)

func main() {
	// Command line flags
	mode := flag.String("mode", "serve", "Run mode: serve, ingest, stats, ask, refresh or query")
	configPath := flag.String("config", "", "Optional YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides KGQA_ADDR)")
	file := flag.String("file", "", "Triplets JSON file for ingest mode")
	clearFirst := flag.Bool("clear", false, "Clear the graph before ingesting")
	question := flag.String("q", "", "Question for ask mode")
	verbose := flag.Bool("v", false, "Print entity matches in ask mode")
	force := flag.Bool("force", false, "Rebuild the index even when a snapshot exists")
	cypher := flag.String("cypher", "", "Cypher statement for query mode")
	flag.Parse()

	// Load and validate configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := log.NewServiceLogger(os.Stderr, level)
	log.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, runOptions{
		mode:       *mode,
		file:       *file,
		clearFirst: *clearFirst,
		question:   *question,
		verbose:    *verbose,
		force:      *force,
		cypher:     *cypher,
	}); err != nil {
		logger.Error("%s: %v", *mode, err)
		os.Exit(1)
	}
}

type runOptions struct {
	mode       string
	file       string
	clearFirst bool
	question   string
	verbose    bool
	force      bool
	cypher     string
}

func run(ctx context.Context, cfg *Config, logger log.Logger, opts runOptions) error {
	c, err := openComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	switch opts.mode {
	case "serve":
		return serve(ctx, cfg, c, logger)
	case "ingest":
		if opts.file == "" {
			return errors.New("-file is required")
		}
		return runIngest(ctx, os.Stdout, c.assistant, opts.file, opts.clearFirst)
	case "stats":
		return runStats(ctx, os.Stdout, c.assistant)
	case "ask":
		return runAsk(ctx, os.Stdout, c.assistant, opts.question, opts.verbose)
	case "refresh":
		return runRefresh(ctx, os.Stdout, c.assistant, opts.force)
	case "query":
		return runQuery(ctx, os.Stdout, c.graph, opts.cypher)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

// serve prepares the indexes, then listens until ctx is cancelled.
func serve(ctx context.Context, cfg *Config, c *components, logger log.Logger) error {
	if _, err := c.assistant.RefreshIndex(ctx, false); err != nil {
		logger.Warn("initial index refresh failed, retrying on first question: %v", err)
	}
	if cfg.DocumentsDir != "" {
		if n, err := c.assistant.RefreshDocuments(ctx, cfg.DocumentsDir); err != nil {
			logger.Warn("document indexing failed: %v", err)
		} else {
			logger.Info("indexed %d document chunks from %s", n, cfg.DocumentsDir)
		}
	}
	if cfg.RefreshSchedule != "" {
		if err := c.assistant.Schedule(cfg.RefreshSchedule); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(c.assistant, cfg.DocumentsDir, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
