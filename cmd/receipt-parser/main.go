package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/radityaharya/workers-receipt-parser/internal/metrics"
	"github.com/radityaharya/workers-receipt-parser/internal/receipt"
	"github.com/radityaharya/workers-receipt-parser/internal/scanning"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-parser")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-parser.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./uploads", "Storage directory path")
		scannerType   = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2.5vl:7b)")
		rulesPath     = fs.StringLong("rules", "", "YAML file overriding validation thresholds")
		logFormat     = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		enableMetrics = fs.BoolLong("metrics", "Serve Prometheus metrics on /metrics")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PARSER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config{
		port:          *port,
		dbPath:        *dbPath,
		storagePath:   *storagePath,
		scannerType:   *scannerType,
		geminiKey:     *geminiKey,
		geminiModel:   *geminiModel,
		ollamaURL:     *ollamaURL,
		ollamaModel:   *ollamaModel,
		rulesPath:     *rulesPath,
		enableMetrics: *enableMetrics,
	}); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

type config struct {
	port          int
	dbPath        string
	storagePath   string
	scannerType   string
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
	rulesPath     string
	enableMetrics bool
}

func run(ctx context.Context, cfg config) error {
	rules, err := validation.LoadConfig(cfg.rulesPath)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if cfg.rulesPath != "" {
		slog.Info("Loaded validation rules", "path", cfg.rulesPath, "minimum_total", rules.MinimumTotal)
	}

	slog.Info("Initializing database...", "path", cfg.dbPath)
	db, err := receipt.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return err
	}
	defer scanner.Close()

	slog.Info("Initializing storage...", "path", cfg.storagePath)
	store, err := receipt.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.enableMetrics {
		m = metrics.New()
	}

	service := receipt.NewService(db, scanner, store, validation.New(rules), m)

	var server *receipt.Server
	if m != nil {
		server = receipt.NewServer(service, m.Handler())
	} else {
		server = receipt.NewServer(service, nil)
	}

	addr := fmt.Sprintf(":%d", cfg.port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "scanner", scanner.Name(), "metrics", cfg.enableMetrics)
	return server.Start(ctx, addr)
}

func newScanner(ctx context.Context, cfg config) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		scanner, err := scanning.NewGemini(ctx, apiKey, cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return scanner, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		scanner, err := scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return scanner, nil
	}
	return nil, fmt.Errorf("invalid scanner type %q: use gemini or ollama", cfg.scannerType)
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q: use text or json", format)
}
