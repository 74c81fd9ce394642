package naver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gamst-shin/goldmine-test/browser"
	"github.com/gamst-shin/goldmine-test/config"
	"github.com/gamst-shin/goldmine-test/services"
	"github.com/gamst-shin/goldmine-test/utils"
)

// The quote widget on the search page: bank tab, then the
// physical-sale tab, then the per-don (3.75 g) price cell.
var (
	bankTabXPaths = []string{
		"/html/body/div[3]/div[2]/div[1]/div[1]/section[2]/div[1]/div[1]/div[2]/a[2]",
	}
	sellTabXPaths = []string{
		"/html/body/div[3]/div[2]/div[1]/div[1]/section[2]/div[1]/div[2]/div[1]/div/ul/li[2]/a",
	}
	quoteXPaths = []string{
		"/html/body/div[3]/div[2]/div[1]/div[1]/section[2]/div[1]/div[2]/div[2]/div[3]/div[2]/span",
	}
)

// PriceStore is the slice of persistence the collector needs.
type PriceStore interface {
	InsertGoldPrice(day time.Time, pricePerGram int64) error
}

// Collector reads the published market gold price. The site quotes per
// don; the stored value is won per gram.
type Collector struct {
	cfg    *config.Config
	logger *utils.Logger
	page   browser.Pager
	store  PriceStore
}

// NewCollector creates a gold-price Collector.
func NewCollector(cfg *config.Config, logger *utils.Logger, page browser.Pager, store PriceStore) *Collector {
	return &Collector{cfg: cfg, logger: logger, page: page, store: store}
}

// Collect fetches today's quote and appends it to the price series.
// Unlike the listing pipeline there is nothing to degrade to here: a
// quote that cannot be read fails the task.
func (c *Collector) Collect(ctx context.Context) (int64, error) {
	if err := c.page.Navigate(ctx, c.cfg.GoldPriceURL); err != nil {
		return 0, fmt.Errorf("goldprice: navigate: %w", err)
	}

	for _, xp := range bankTabXPaths {
		if err := c.page.ClickXPath(ctx, xp); err == nil {
			break
		}
	}
	time.Sleep(500 * time.Millisecond)

	for _, xp := range sellTabXPaths {
		if err := c.page.ClickXPath(ctx, xp); err == nil {
			break
		}
	}
	time.Sleep(500 * time.Millisecond)

	raw, ok := c.page.LocateFirst(ctx, quoteXPaths)
	if !ok {
		return 0, fmt.Errorf("goldprice: quote element not found")
	}

	perDon, ok := services.Price(raw)
	if !ok {
		return 0, fmt.Errorf("goldprice: unparseable quote %q", raw)
	}
	perGram := PerGram(perDon)

	if err := c.store.InsertGoldPrice(time.Now(), perGram); err != nil {
		return 0, err
	}

	c.logger.Info("[goldprice] Stored %d원/g (quote %d원/don)", perGram, perDon)
	return perGram, nil
}

// PerGram converts a per-don quote to won per gram, rounded to whole won.
func PerGram(perDon int64) int64 {
	return int64(math.Round(float64(perDon) / services.GramsPerDon))
}
