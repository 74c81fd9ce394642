package storage

import "github.com/gamst-shin/goldmine-test/models"

// ItemStore is the persistence contract for live auction listings.
// Upsert semantics guarantee at most one row per URL.
type ItemStore interface {
	UpsertItem(item *models.AuctionItem) error
	SearchItems(query, region string) ([]*models.AuctionItem, int, error)
	UnanalyzedItems() ([]*models.AuctionItem, error)
}

// HistoryStore is the contract for the append-only closed-auction log.
// InsertHistory reports whether a row was actually written; an existing
// URL is a silent no-op, never an update.
type HistoryStore interface {
	InsertHistory(rec *models.HistoryRecord) (bool, error)
	FetchHistory() ([]*models.HistoryRecord, error)
}

// SummaryWriter persists raw harvested summaries before enrichment.
type SummaryWriter interface {
	WriteSummaries(summaries []*models.Summary) error
	Close() error
}
