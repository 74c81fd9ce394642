package models

import "time"

// Material classifies what an auctioned item is mostly made of.
type Material string

const (
	MaterialGold    Material = "GOLD"
	MaterialSilver  Material = "SILVER"
	MaterialDiamond Material = "DIAMOND"
	MaterialOthers  Material = "OTHERS"
	MaterialUnknown Material = "UNKNOWN"
)

// Purity is the fineness of the metal, in karats or named grades.
type Purity string

const (
	Purity24K      Purity = "24K"
	Purity18K      Purity = "18K"
	Purity14K      Purity = "14K"
	PurityPlatinum Purity = "PLATINUM"
	PuritySilver   Purity = "SILVER"
	PurityUnknown  Purity = "UNKNOWN"
)

// Risk marks how much an item's analysis should be trusted.
// The empty string is the "not yet analyzed" sentinel that drives
// the batch classification pass.
type Risk string

const (
	RiskUnanalyzed Risk = ""
	RiskLow        Risk = "LOW"
	RiskHigh       Risk = "HIGH"
)

// Summary holds the minimal per-item data readable from the result
// list page alone. Detail-page enrichment turns it into an AuctionItem.
type Summary struct {
	URL       string
	Title     string
	Price     int64
	Location  string
	ImageURL  string
	RawLines  string
	ScrapedAt time.Time
}

// AuctionItem is one live listing, keyed by its detail-page URL.
// Re-scrapes update the row in place; there is never more than one
// row per URL.
type AuctionItem struct {
	ID          int64
	URL         string
	Title       string
	Location    string
	ImageURL    string
	Price       int64
	Description string
	Material    Material
	Purity      Purity
	// WeightG is the estimated pure-metal weight in grams, not the
	// gross weight of the item.
	WeightG    float64
	Confidence float64
	RiskFactor Risk
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HistoryRecord is one closed-auction outcome. The history table is
// append-only: a URL is written at most once and never mutated.
type HistoryRecord struct {
	ID         int64
	Season     int
	Title      string
	Price      int64
	Weight     float64
	PurityInfo string
	URL        string
	CreatedAt  time.Time
}

// Classification is the validated output of the remote appraiser.
type Classification struct {
	Material   Material `json:"material"`
	Purity     Purity   `json:"purity"`
	WeightG    float64  `json:"weight_g"`
	Confidence float64  `json:"confidence"`
	Risk       Risk     `json:"risk"`
}
