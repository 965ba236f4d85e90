package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/analytics"
	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/clarify"
	"github.com/khanglvm/torque-advisor/internal/config"
	"github.com/khanglvm/torque-advisor/internal/metrics"
	"github.com/khanglvm/torque-advisor/internal/recommend"
	"github.com/khanglvm/torque-advisor/internal/search"
	"github.com/khanglvm/torque-advisor/internal/session"
	"github.com/khanglvm/torque-advisor/internal/storage"
)

// evictInterval is how often idle sessions are swept in long-running commands.
const evictInterval = time.Minute

// newLogger builds the process logger. Logs go to stderr so stdio transports stay clean.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadConfig reads the config file, falling back to defaults when it is missing.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app holds the wired components shared by serve, mcp and ask.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	catalog  *catalog.Catalog
	storage  *storage.SQLiteStorage
	sessions *session.MemoryStore
	recorder *analytics.Recorder
	registry *prometheus.Registry
	advisor  *advisor.Advisor
	closers  []func() error
}

// buildApp loads the catalog and wires retrieval, clarification,
// recommendation, sessions, analytics and metrics.
func buildApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(opts.debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.catalog, err = catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("tools", a.catalog.Len()))

	a.storage = storage.NewStorage(cfg.Settings.DataDir, logger)
	if err := a.storage.Init(); err != nil {
		logger.Warn("storage unavailable, continuing without cache or history", zap.Error(err))
	}
	a.closers = append(a.closers, a.storage.Close)

	ranker, err := a.buildRanker(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := recommend.New(ctx, recommend.Config{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
		APIKeyEnvVar: cfg.LLM.APIKeyEnvVar,
		BaseURL:      cfg.LLM.BaseURL,
		Temperature:  cfg.LLM.Temperature,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recommender: %w", err)
	}

	a.sessions = session.NewMemoryStore(
		session.WithTimeout(cfg.SessionTimeout()),
		session.WithLogger(logger),
	)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	advOpts := []advisor.Option{
		advisor.WithSessions(a.sessions),
		advisor.WithMetrics(metrics.NewPrometheusMetrics(a.registry)),
		advisor.WithLogger(logger),
		advisor.WithUpstreamTimeout(cfg.UpstreamTimeout()),
		advisor.WithTopK(cfg.Settings.TopK),
	}
	if cfg.Settings.Analytics && a.storage.Enabled() {
		if err := a.storage.Cleanup(cfg.HistoryRetention()); err != nil {
			logger.Warn("failed to clean up turn history", zap.Error(err))
		}
		a.recorder = analytics.NewRecorder(a.storage, logger)
		advOpts = append(advOpts, advisor.WithRecorder(a.recorder))
	}

	a.advisor = advisor.New(
		search.NewRetriever(a.catalog, ranker, logger),
		clarify.NewEngine(a.catalog),
		rec,
		advOpts...,
	)

	ok = true
	return a, nil
}

// resolveMode turns auto into semantic when an embedding key is available
// and keyword otherwise. Hybrid is only used when configured explicitly.
func resolveMode(mode string, hasKey bool) string {
	if mode != config.ModeAuto {
		return mode
	}
	if hasKey {
		return config.ModeSemantic
	}
	return config.ModeKeyword
}

// buildRanker selects the retrieval backend for the configured mode.
func (a *app) buildRanker(ctx context.Context) (search.Ranker, error) {
	mode := resolveMode(a.cfg.Embedding.Mode, a.cfg.EmbeddingAPIKey() != "")
	a.logger.Info("retrieval mode", zap.String("mode", mode))

	var keyword, semantic search.Ranker
	if mode == config.ModeKeyword || mode == config.ModeHybrid {
		idx, err := search.NewKeywordIndex(a.catalog, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		keyword = idx
	}
	if mode == config.ModeSemantic || mode == config.ModeHybrid {
		embedder, err := a.embedder()
		if err != nil {
			return nil, err
		}
		idx, _, err := a.buildIndex(ctx, embedder)
		if err != nil {
			return nil, err
		}
		semantic = search.NewSemanticRanker(embedder, idx)
	}

	switch mode {
	case config.ModeKeyword:
		return keyword, nil
	case config.ModeSemantic:
		return semantic, nil
	default:
		w := a.cfg.Embedding.SemanticWeight
		return search.NewHybridRanker(semantic, keyword, search.FusionConfig{
			SemanticWeight: w,
			KeywordWeight:  1 - w,
		}), nil
	}
}

// embedder creates the query-caching embeddings client.
func (a *app) embedder() (search.Embedder, error) {
	e := a.cfg.Embedding
	key := a.cfg.EmbeddingAPIKey()
	if key == "" {
		return nil, fmt.Errorf("embedding API key not found: set embedding.apiKey or %s", e.APIKeyEnvVar)
	}
	client, err := search.NewHTTPEmbedder(search.HTTPEmbedderConfig{
		APIKey:            key,
		Model:             e.Model,
		BaseURL:           e.BaseURL,
		Timeout:           a.cfg.UpstreamTimeout(),
		RequestsPerSecond: e.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	return search.NewCachedEmbedder(client, e.CacheSize)
}

// buildIndex embeds the catalog, reusing vectors cached in storage.
func (a *app) buildIndex(ctx context.Context, embedder search.Embedder) (*search.FlatIndex, search.BuildStats, error) {
	var cache search.VectorCache
	if a.storage != nil && a.storage.Enabled() {
		cache = a.storage
	}
	idx, stats, err := search.BuildIndex(ctx, a.catalog, embedder, cache, search.BuildOptions{
		Version:     a.cfg.Embedding.Model,
		BatchSize:   a.cfg.Embedding.BatchSize,
		Concurrency: a.cfg.Embedding.Concurrency,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to build semantic index: %w", err)
	}
	return idx, stats, nil
}

// evictLoop sweeps idle sessions until ctx is done.
func (a *app) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.EvictExpired(); n > 0 {
				a.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Close flushes analytics and releases resources in reverse order.
func (a *app) Close() {
	if a.recorder != nil {
		pending := a.recorder.QueueSize()
		a.recorder.Stop()
		log := a.logger.Debug
		if a.recorder.Dropped() > 0 {
			log = a.logger.Warn
		}
		log("analytics recorder stopped",
			zap.Int("flushed_on_stop", pending),
			zap.Int("dropped", a.recorder.Dropped()))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
