package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gamst-shin/goldmine-test/models"
)

// MemStore is an in-memory ItemStore/HistoryStore with the same
// semantics as the Postgres implementation. It backs tests and dry
// runs where no database is reachable.
type MemStore struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[string]*models.AuctionItem
	history map[string]*models.HistoryRecord
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:  1,
		items:   make(map[string]*models.AuctionItem),
		history: make(map[string]*models.HistoryRecord),
	}
}

// UpsertItem inserts or overwrites the row keyed by item.URL. An
// existing row keeps its ID and created_at; everything else is
// replaced and updated_at refreshed.
func (m *MemStore) UpsertItem(item *models.AuctionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cp := *item

	if existing, ok := m.items[item.URL]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.ID = m.nextID
		m.nextID++
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	m.items[item.URL] = &cp
	return nil
}

// SearchItems filters by case-insensitive substring over
// title/description and location, newest first.
func (m *MemStore) SearchItems(query, region string) ([]*models.AuctionItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	r := strings.ToLower(region)

	var out []*models.AuctionItem
	for _, it := range m.items {
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) {
			continue
		}
		if r != "" && !strings.Contains(strings.ToLower(it.Location), r) {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, len(out), nil
}

// UnanalyzedItems returns items still carrying the unanalyzed sentinel.
func (m *MemStore) UnanalyzedItems() ([]*models.AuctionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.AuctionItem
	for _, it := range m.items {
		if it.RiskFactor == models.RiskUnanalyzed {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertHistory appends the record unless the URL already exists.
func (m *MemStore) InsertHistory(rec *models.HistoryRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.history[rec.URL]; ok {
		return false, nil
	}

	cp := *rec
	cp.ID = m.nextID
	m.nextID++
	cp.CreatedAt = time.Now()
	m.history[rec.URL] = &cp
	return true, nil
}

// FetchHistory returns all history records, newest season first.
func (m *MemStore) FetchHistory() ([]*models.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.HistoryRecord
	for _, r := range m.history {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season == out[j].Season {
			return out[i].ID > out[j].ID
		}
		return out[i].Season > out[j].Season
	})
	return out, nil
}
