// Package main is the Kiroku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kiroku/internal/config"
	"github.com/hyperjump/kiroku/internal/embedding"
	"github.com/hyperjump/kiroku/internal/extract"
	"github.com/hyperjump/kiroku/internal/keyword"
	"github.com/hyperjump/kiroku/internal/models"
	"github.com/hyperjump/kiroku/internal/noteid"
	"github.com/hyperjump/kiroku/internal/notes"
	"github.com/hyperjump/kiroku/internal/prompt"
	"github.com/hyperjump/kiroku/internal/rag"
	"github.com/hyperjump/kiroku/internal/server"
	"github.com/hyperjump/kiroku/internal/store"
	"github.com/hyperjump/kiroku/internal/watcher"
	"github.com/hyperjump/kiroku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kiroku/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "index":
		runIndex()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kiroku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kiroku - personal knowledge base with semantic retrieval

Usage:
  kiroku server [-config path] [-debug]   start the API server
  kiroku query <text> [-template name]    query a running server
  kiroku index                            re-index the whole corpus
  kiroku watch [-config path]             ingest watched directories without the server
  kiroku status                           show server status
  kiroku version`)
}

// components holds everything the server wires together, for orderly shutdown.
type components struct {
	Repo         notes.Repository
	KeywordIndex keyword.Index
	Compute      *embedding.ComputeUnit
	Store        *store.Store
	Orchestrator *rag.Orchestrator
	SnapshotPath string
	logger       *zap.Logger
}

// Close persists the embedding store and releases everything.
func (c *components) Close() {
	if err := c.Store.Save(c.SnapshotPath); err != nil {
		c.logger.Warn("failed to save embedding snapshot", zap.Error(err))
	}
	_ = c.Compute.Close()
	_ = c.KeywordIndex.Close()
	_ = c.Repo.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	repo, err := notes.NewSQLiteRepository(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open note database: %w", err)
	}
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	// The loader runs inside the compute unit; falling back to the mock
	// embedder keeps development working without the onnxruntime library.
	loader := func(modelPath string) (embedding.Embedder, error) {
		emb, err := embedding.NewONNXEmbedder(modelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens, cfg.Embedding.CacheSize)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
		return emb, nil
	}
	compute := embedding.NewComputeUnit(loader, embedding.WithLogger(logger))

	st := store.New()
	if err := st.Load(cfg.Storage.SnapshotPath); err != nil {
		logger.Warn("failed to load embedding snapshot, starting cold", zap.Error(err))
	}

	registry := prompt.NewRegistry(prompt.WithStrictLookup(cfg.Prompt.StrictTemplates))
	orch := rag.New(compute, st, registry, &cfg.Retrieval,
		rag.WithLogger(logger),
		rag.WithDefaultTemplate(cfg.Prompt.DefaultTemplate),
	)
	return &components{
		Repo:         repo,
		KeywordIndex: kw,
		Compute:      compute,
		Store:        st,
		Orchestrator: orch,
		SnapshotPath: cfg.Storage.SnapshotPath,
		logger:       logger,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedPath), zap.Bool("debug", debugMode))

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the model and index the corpus in the background so the HTTP
	// surface comes up immediately; queries fail with a clear "not ready"
	// until the model finishes loading.
	go func() {
		if err := c.Compute.Init(ctx, cfg.Embedding.ModelPath); err != nil {
			logger.Error("model initialization failed; semantic search unavailable", zap.Error(err))
			return
		}
		all, err := c.Repo.All(ctx)
		if err != nil {
			logger.Error("failed to read corpus", zap.Error(err))
			return
		}
		if _, err := c.Orchestrator.IndexCorpus(ctx, all); err != nil {
			logger.Error("initial corpus indexing failed", zap.Error(err))
		}
	}()

	if len(cfg.Watch.Directories) > 0 {
		startWatcher(ctx, cfg, c, logger)
	}

	srv := server.NewServer(c.Orchestrator, c.Repo, c.KeywordIndex, &cfg.Server, logger)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Stop(shutdownCtx)
		cancel()
	}()
	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// startWatcher keeps file-backed notes in sync: a changed file is extracted
// and re-indexed, a removed file drops its note from every index.
func startWatcher(ctx context.Context, cfg *config.Config, c *components, logger *zap.Logger) {
	extractor := extract.NewExtractor()
	onChange := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		text, err := extractor.Extract(absPath)
		if err != nil {
			logger.Warn("extract failed", zap.String("path", path), zap.Error(err))
			return
		}
		note := &models.Note{
			ID:      noteid.ForPath(absPath),
			Title:   filepath.Base(absPath),
			Content: text,
		}
		if err := c.Repo.Upsert(ctx, note); err != nil {
			logger.Warn("note upsert failed", zap.String("path", path), zap.Error(err))
			return
		}
		if err := c.KeywordIndex.Index(ctx, note.ID, note); err != nil {
			logger.Warn("keyword indexing failed", zap.String("path", path), zap.Error(err))
		}
		if _, err := c.Orchestrator.IndexCorpus(ctx, []*models.Note{note}); err != nil {
			logger.Warn("embedding failed", zap.String("path", path), zap.Error(err))
		}
	}
	onRemove := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		id := noteid.ForPath(absPath)
		if err := c.Repo.Delete(ctx, id); err != nil {
			logger.Warn("note delete failed", zap.String("path", path), zap.Error(err))
		}
		c.Orchestrator.RemoveNote(id)
		_ = c.KeywordIndex.Delete(ctx, id)
	}

	opts := []watcher.Option{}
	if cfg.Debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	w := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), onChange, onRemove, opts...)
	if err := w.Start(ctx); err != nil {
		logger.Warn("watcher failed to start", zap.Error(err))
	}
}

// runWatch runs the directory watcher and indexing pipeline without the HTTP
// surface, for keeping a file-backed corpus current from a terminal.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("No watch.directories configured")
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Compute.Init(ctx, cfg.Embedding.ModelPath); err != nil {
		logger.Fatal("model initialization failed", zap.Error(err))
	}
	startWatcher(ctx, cfg, c, logger)
	logger.Info("watching", zap.Strings("directories", cfg.Watch.Directories))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

func serverBase(cfg *config.Config) string {
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	template := fs.String("template", "", "prompt template name")
	k := fs.Int("k", 0, "number of chunks to retrieve")
	args := os.Args[2:]
	var text string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		text = args[0]
		args = args[1:]
	}
	_ = fs.Parse(args)
	if text == "" {
		fmt.Println("Usage: kiroku query <text> [-template name] [-k n]")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]any{
		"query":    text,
		"template": *template,
		"options":  map[string]any{"k": *k},
	})
	resp, err := http.Post(serverBase(cfg)+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Request failed (is the server running?): %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.Post(serverBase(cfg)+"/api/v1/index", "application/json", nil)
	if err != nil {
		fmt.Printf("Request failed (is the server running?): %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	u, _ := url.Parse(serverBase(cfg) + "/api/v1/status")
	resp, err := http.Get(u.String())
	if err != nil {
		fmt.Printf("Request failed (is the server running?): %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
}
