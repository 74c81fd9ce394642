package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamst-shin/goldmine-test/browser"
	"github.com/gamst-shin/goldmine-test/classify"
	"github.com/gamst-shin/goldmine-test/config"
	"github.com/gamst-shin/goldmine-test/scraper/kapao"
	"github.com/gamst-shin/goldmine-test/scraper/naver"
	"github.com/gamst-shin/goldmine-test/services"
	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
	"github.com/gamst-shin/goldmine-test/web"
)

func main() {
	task := flag.String("task", "scrape",
		"task to run: scrape | history | classify | goldprice | serve")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== goldmine starting, task: %s ===", *task)

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	var failed bool
	switch *task {
	case "scrape":
		failed = runScrape(ctx, cfg, logger, store)
	case "history":
		failed = runHistory(ctx, cfg, logger, store)
	case "classify":
		failed = runClassify(ctx, cfg, logger, store)
	case "goldprice":
		failed = runGoldPrice(ctx, cfg, logger, store)
	case "serve":
		failed = runServe(ctx, cfg, logger, store)
	default:
		logger.Error("Unknown task %q", *task)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
	logger.Info("=== goldmine done ===")
}

// runScrape drives the live-listing pipeline: harvest, enrich, upsert,
// plus a raw CSV snapshot of the harvested summaries.
func runScrape(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *storage.PostgresStore) bool {
	session, err := browser.NewSession(cfg, logger)
	if err != nil {
		logger.Error("Browser session failed: %v", err)
		return true
	}
	defer session.Close()

	var analyzer *services.Analyzer
	if cfg.GeminiAPIKey != "" {
		analyzer = services.NewAnalyzer(logger, classify.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel), store)
	} else {
		logger.Warn("GEMINI_API_KEY not set, items stay marked for the batch classify pass")
	}

	scraper := kapao.New(cfg, logger, session, store, analyzer)
	summaries, err := scraper.Run(ctx)
	if err != nil {
		logger.Error("Scrape failed: %v", err)
		return true
	}
	if len(summaries) == 0 {
		logger.Warn("No listings harvested this run")
		return false
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		return false // persisted results already in Postgres
	}
	defer csvWriter.Close()

	if err := csvWriter.WriteSummaries(summaries); err != nil {
		logger.Error("CSV write failed: %v", err)
	} else {
		logger.Info("Raw summaries saved to %s", cfg.CSVOutputPath)
	}
	return false
}

func runHistory(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *storage.PostgresStore) bool {
	session, err := browser.NewSession(cfg, logger)
	if err != nil {
		logger.Error("Browser session failed: %v", err)
		return true
	}
	defer session.Close()

	scraper := kapao.New(cfg, logger, session, store, nil)
	collector := kapao.NewHistoryCollector(scraper, store)

	if err := collector.Collect(ctx, cfg.HistorySeasonFrom, cfg.HistorySeasonTo); err != nil {
		logger.Error("History collection failed: %v", err)
		return true
	}
	return false
}

func runClassify(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *storage.PostgresStore) bool {
	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required for the classify task")
		return true
	}

	analyzer := services.NewAnalyzer(logger, classify.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel), store)
	if _, _, err := analyzer.Run(ctx); err != nil {
		logger.Error("Batch classification failed: %v", err)
		return true
	}
	return false
}

func runGoldPrice(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *storage.PostgresStore) bool {
	session, err := browser.NewSession(cfg, logger)
	if err != nil {
		logger.Error("Browser session failed: %v", err)
		return true
	}
	defer session.Close()

	collector := naver.NewCollector(cfg, logger, session, store)
	if _, err := collector.Collect(ctx); err != nil {
		logger.Error("Gold price collection failed: %v", err)
		return true
	}
	return false
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *storage.PostgresStore) bool {
	server := web.NewServer(store, store, logger)
	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("HTTP server stopped: %v", err)
		return true
	}
	return false
}
