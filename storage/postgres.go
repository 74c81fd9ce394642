package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/gamst-shin/goldmine-test/models"
)

// PostgresStore persists auction items, closed-auction history and the
// daily gold price to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS gold_items (
			id          BIGSERIAL PRIMARY KEY,
			url         TEXT             UNIQUE NOT NULL,
			title       TEXT             NOT NULL DEFAULT '',
			location    TEXT             NOT NULL DEFAULT '',
			image_url   TEXT             NOT NULL DEFAULT '',
			price       BIGINT           NOT NULL DEFAULT 0,
			description TEXT             NOT NULL DEFAULT '',
			material    VARCHAR(16)      NOT NULL DEFAULT 'UNKNOWN',
			purity      VARCHAR(16)      NOT NULL DEFAULT 'UNKNOWN',
			weight_g    DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_factor VARCHAR(8)       NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_gold_items_location ON gold_items(location);
		CREATE INDEX IF NOT EXISTS idx_gold_items_risk     ON gold_items(risk_factor);
		CREATE INDEX IF NOT EXISTS idx_gold_items_created  ON gold_items(created_at);

		CREATE TABLE IF NOT EXISTS auction_history (
			id          BIGSERIAL PRIMARY KEY,
			season      INTEGER          NOT NULL,
			title       TEXT             NOT NULL DEFAULT '',
			price       BIGINT           NOT NULL DEFAULT 0,
			weight      DOUBLE PRECISION NOT NULL DEFAULT 0,
			purity_info TEXT             NOT NULL DEFAULT '',
			url         TEXT             UNIQUE NOT NULL,
			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_auction_history_season ON auction_history(season);

		CREATE TABLE IF NOT EXISTS gold_price (
			id         BIGSERIAL   PRIMARY KEY,
			date       DATE        NOT NULL,
			price      BIGINT      NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// UpsertItem inserts the item or, when a row with the same URL already
// exists, overwrites every mutable field and refreshes updated_at.
// created_at is written once and never touched again.
func (ps *PostgresStore) UpsertItem(item *models.AuctionItem) error {
	_, err := ps.db.Exec(`
		INSERT INTO gold_items
			(url, title, location, image_url, price, description,
			 material, purity, weight_g, confidence, risk_factor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (url) DO UPDATE SET
			title       = EXCLUDED.title,
			location    = EXCLUDED.location,
			image_url   = EXCLUDED.image_url,
			price       = EXCLUDED.price,
			description = EXCLUDED.description,
			material    = EXCLUDED.material,
			purity      = EXCLUDED.purity,
			weight_g    = EXCLUDED.weight_g,
			confidence  = EXCLUDED.confidence,
			risk_factor = EXCLUDED.risk_factor,
			updated_at  = NOW()
	`, item.URL, item.Title, item.Location, item.ImageURL, item.Price,
		item.Description, string(item.Material), string(item.Purity),
		item.WeightG, item.Confidence, string(item.RiskFactor))
	if err != nil {
		return fmt.Errorf("postgres: upsert item %s: %w", item.URL, err)
	}
	return nil
}

// SearchItems returns items matching the optional free-text query
// (title or description, case-insensitive) and region filter, newest
// first, along with the total match count.
func (ps *PostgresStore) SearchItems(query, region string) ([]*models.AuctionItem, int, error) {
	rows, err := ps.db.Query(`
		SELECT id, url, title, location, image_url, price, description,
		       material, purity, weight_g, confidence, risk_factor,
		       created_at, updated_at
		FROM gold_items
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR location ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
	`, query, region)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: search items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, len(items), nil
}

// UnanalyzedItems returns items whose risk marker is still the
// "not yet analyzed" sentinel.
func (ps *PostgresStore) UnanalyzedItems() ([]*models.AuctionItem, error) {
	rows, err := ps.db.Query(`
		SELECT id, url, title, location, image_url, price, description,
		       material, purity, weight_g, confidence, risk_factor,
		       created_at, updated_at
		FROM gold_items
		WHERE risk_factor = ''
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: unanalyzed items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]*models.AuctionItem, error) {
	var items []*models.AuctionItem
	for rows.Next() {
		it := &models.AuctionItem{}
		var material, purity, risk string
		if err := rows.Scan(
			&it.ID, &it.URL, &it.Title, &it.Location, &it.ImageURL,
			&it.Price, &it.Description, &material, &purity,
			&it.WeightG, &it.Confidence, &risk,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		it.Material = models.Material(material)
		it.Purity = models.Purity(purity)
		it.RiskFactor = models.Risk(risk)
		items = append(items, it)
	}
	return items, rows.Err()
}

// InsertHistory appends one closed-auction record unless its URL is
// already present. The history table is a log: an existing row is left
// untouched and false is returned.
func (ps *PostgresStore) InsertHistory(rec *models.HistoryRecord) (bool, error) {
	res, err := ps.db.Exec(`
		INSERT INTO auction_history (season, title, price, weight, purity_info, url)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (url) DO NOTHING
	`, rec.Season, rec.Title, rec.Price, rec.Weight, rec.PurityInfo, rec.URL)
	if err != nil {
		return false, fmt.Errorf("postgres: insert history %s: %w", rec.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: insert history %s: %w", rec.URL, err)
	}
	return n > 0, nil
}

// FetchHistory returns all stored closed-auction records, newest
// season first.
func (ps *PostgresStore) FetchHistory() ([]*models.HistoryRecord, error) {
	rows, err := ps.db.Query(`
		SELECT id, season, title, price, weight, purity_info, url, created_at
		FROM auction_history
		ORDER BY season DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch history: %w", err)
	}
	defer rows.Close()

	var recs []*models.HistoryRecord
	for rows.Next() {
		r := &models.HistoryRecord{}
		if err := rows.Scan(&r.ID, &r.Season, &r.Title, &r.Price,
			&r.Weight, &r.PurityInfo, &r.URL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// InsertGoldPrice appends one daily market quote in won per gram.
func (ps *PostgresStore) InsertGoldPrice(day time.Time, pricePerGram int64) error {
	_, err := ps.db.Exec(`
		INSERT INTO gold_price (date, price) VALUES ($1, $2)
	`, day.Format("2006-01-02"), pricePerGram)
	if err != nil {
		return fmt.Errorf("postgres: insert gold price: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
