package kapao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gamst-shin/goldmine-test/browser"
	"github.com/gamst-shin/goldmine-test/config"
	"github.com/gamst-shin/goldmine-test/models"
	"github.com/gamst-shin/goldmine-test/services"
	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
)

// Locators for the KAPAO public-auction site. The detail page is the
// brittle part: the description block has been observed at different
// DOM depths between item templates, so every lookup is an ordered
// candidate list consumed through Pager.LocateFirst.
var (
	categoryLabelXPath = "//*[@id='cate-info']//label[contains(., '귀금속')]"
	categoryMenuXPath  = "/html/body/div[4]/main/div[2]/div[2]/div/ul/li[2]/button"
	categoryInputXPath = "/html/body/div[4]/main/div[2]/div[2]/div/ul/li[2]/div/div/div[4]/label/input"
	searchButtonXPaths = []string{
		"//*[@id='frm_item_search']//*[contains(@alt, '검색') or contains(., '검색')]",
		"/html/body/div[4]/main/div[2]/div[2]/div/button",
	}
	listXPath = "/html/body/div[4]/main/div[2]/div[5]/ul"

	detailPriceXPaths = []string{
		"/html/body/div[4]/main/div[3]/div[1]/div[2]/dl[2]",
	}
	detailWeightXPaths = []string{
		"/html/body/div[4]/main/div[3]/div[1]/div[2]/dl[3]",
	}
	detailDescXPaths = []string{
		"/html/body/div[4]/main/div[3]/div[4]/div[1]/div[10]",
		"/html/body/div[4]/main/div[3]/div[4]/div[1]/div[2]",
		"/html/body/div[4]/main/div[3]/div[4]/div[1]",
	}
)

const submitSearchJS = `
(function() {
	var form = document.getElementById('frm_item_search');
	if (!form) return false;
	form.submit();
	return true;
})()`

// Scraper drives the live-listing pipeline: harvest the result list,
// enrich each entry from its detail page, persist through the upsert
// store. One browser tab, one item at a time.
type Scraper struct {
	cfg      *config.Config
	logger   *utils.Logger
	page     browser.Pager
	items    storage.ItemStore
	analyzer *services.Analyzer
	visited  *utils.URLSet
	retry    *utils.RetryConfig
	throttle *utils.Throttle
}

// New creates a ready-to-use KAPAO scraper. analyzer may be nil, in
// which case harvested items stay marked unanalyzed for the batch pass.
func New(cfg *config.Config, logger *utils.Logger, page browser.Pager,
	items storage.ItemStore, analyzer *services.Analyzer) *Scraper {
	return &Scraper{
		cfg:      cfg,
		logger:   logger,
		page:     page,
		items:    items,
		analyzer: analyzer,
		visited:  utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		throttle: utils.NewThrottle(cfg.ThrottleMinMs, cfg.ThrottleMaxMs),
	}
}

// Run harvests the precious-metal list, enriches every entry and
// upserts it. Per-item failures are logged and skipped; only failing
// to reach the list at all aborts the run. The harvested summaries are
// returned for raw export.
func (s *Scraper) Run(ctx context.Context) ([]*models.Summary, error) {
	summaries, err := s.Harvest(ctx)
	if err != nil {
		return nil, err
	}

	var stored int
	for _, sum := range summaries {
		s.throttle.Wait(ctx)
		if ctx.Err() != nil {
			return summaries, ctx.Err()
		}

		item, err := s.Enrich(ctx, sum)
		if err != nil {
			s.logger.Warn("[kapao] Detail page failed for %s: %v (keeping list data)", sum.URL, err)
			item = itemFromSummary(sum)
		}

		if s.analyzer != nil {
			s.analyzer.Analyze(ctx, item)
		}

		if err := s.items.UpsertItem(item); err != nil {
			s.logger.Error("[kapao] Upsert failed for %s: %v", item.URL, err)
			continue
		}
		stored++
		s.logger.Info("[kapao] Stored %s / %s / %d원 (%s %s %.2fg)",
			truncate(item.Title, 20), item.Location, item.Price,
			item.Material, item.Purity, item.WeightG)
	}

	s.logger.Info("[kapao] Run complete: %d harvested, %d stored", len(summaries), stored)
	return summaries, nil
}

// Harvest loads the list page, applies the precious-metal category
// filter, submits the search and parses the result blocks.
func (s *Scraper) Harvest(ctx context.Context) ([]*models.Summary, error) {
	var html string

	err := s.retry.Do(ctx, "harvest-list", func() error {
		if err := s.page.Navigate(ctx, s.cfg.ListURL); err != nil {
			return err
		}
		if err := s.applyCategoryFilter(ctx); err != nil {
			return err
		}
		if err := s.submitSearch(ctx); err != nil {
			return err
		}

		var err error
		html, err = s.listHTML(ctx)
		if err != nil {
			return err
		}
		if html == "" {
			return fmt.Errorf("kapao: result list not found")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kapao: harvest: %w", err)
	}

	summaries, skipped := ParseList(html, time.Now())

	var fresh []*models.Summary
	for _, sum := range summaries {
		if !s.visited.Add(sum.URL) {
			s.logger.Debug("[kapao] Skipping duplicate: %s", sum.URL)
			continue
		}
		fresh = append(fresh, sum)
	}

	s.logger.Info("[kapao] Harvested %d blocks (%d skipped, %d duplicates)",
		len(fresh), skipped, len(summaries)-len(fresh))
	return fresh, nil
}

// applyCategoryFilter ticks the 귀금속 checkbox. The robust label
// locator is tried first; the fixed menu-button path is the fallback
// for the collapsed-menu variant of the page.
func (s *Scraper) applyCategoryFilter(ctx context.Context) error {
	if err := s.page.ClickXPath(ctx, categoryLabelXPath); err == nil {
		return nil
	}

	if err := s.page.ClickXPath(ctx, categoryMenuXPath); err != nil {
		s.logger.Debug("[kapao] Category menu button not clickable: %v", err)
	}
	if err := s.page.ClickXPath(ctx, categoryInputXPath); err != nil {
		return fmt.Errorf("kapao: category filter: %w", err)
	}
	return nil
}

// submitSearch prefers the form submit and falls back to clicking the
// search button candidates.
func (s *Scraper) submitSearch(ctx context.Context) error {
	var submitted bool
	if err := s.page.Eval(ctx, submitSearchJS, &submitted); err == nil && submitted {
		return nil
	}

	for _, xp := range searchButtonXPaths {
		if err := s.page.ClickXPath(ctx, xp); err == nil {
			return nil
		}
	}
	return fmt.Errorf("kapao: search submit: no working control")
}

// listHTML waits for the result list to render and returns its HTML.
func (s *Scraper) listHTML(ctx context.Context) (string, error) {
	// The search triggers an async list refresh; poll until <li>
	// content shows up or the deadline hits.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, ok := s.page.LocateFirst(ctx, []string{listXPath + "/li"}); ok {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return s.page.OuterHTML(ctx, listXPath)
}

// ParseList turns the result-list HTML into summaries, one per block
// that carries a detail link. Blocks without an anchor are unusable
// and counted in skipped. Labels are matched by substring because the
// site renders them with varying suffixes.
func ParseList(html string, now time.Time) (summaries []*models.Summary, skipped int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0
	}

	doc.Find("li").Each(func(i int, li *goquery.Selection) {
		anchor := li.Find("a").First()
		href, ok := anchor.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			skipped++
			return
		}

		sum := &models.Summary{
			URL:       strings.TrimSpace(href),
			Title:     "제목 없음",
			Location:  "미분류",
			ScrapedAt: now,
		}

		if src, ok := li.Find("img").First().Attr("src"); ok {
			sum.ImageURL = strings.TrimSpace(src)
		}

		var lines []string
		dts := li.Find("dl dt")
		dds := li.Find("dl dd")
		dts.Each(func(j int, dt *goquery.Selection) {
			if j >= dds.Length() {
				return
			}
			label := services.NormalizeText(dt.Text())
			value := services.NormalizeText(dds.Eq(j).Text())
			lines = append(lines, label+": "+value)

			switch {
			case strings.Contains(label, "물품명"):
				sum.Title = value
			case strings.Contains(label, "공매"):
				if price, ok := services.Price(value); ok {
					sum.Price = price
				}
			case strings.Contains(label, "지역"):
				sum.Location = value
			}
		})

		if sum.Title == "제목 없음" {
			if t := services.NormalizeText(li.Find(".tit").First().Text()); t != "" {
				sum.Title = t
			}
		}

		sum.RawLines = strings.Join(lines, "\n")
		summaries = append(summaries, sum)
	})

	return summaries, skipped
}

// Enrich visits the summary's detail page and builds the full record:
// detail-page price and weight, the description adopted from the first
// non-empty candidate position, and locally classified purity and
// material. The record still carries the unanalyzed risk sentinel;
// remote classification is layered on separately.
func (s *Scraper) Enrich(ctx context.Context, sum *models.Summary) (*models.AuctionItem, error) {
	if err := s.page.Navigate(ctx, sum.URL); err != nil {
		return nil, fmt.Errorf("kapao: enrich %s: %w", sum.URL, err)
	}

	item := itemFromSummary(sum)

	if text, ok := s.page.LocateFirst(ctx, detailPriceXPaths); ok {
		if price, ok := services.Price(text); ok {
			item.Price = price
		}
	} else {
		s.logger.Debug("[kapao] Price block missing on %s: keeping list price", sum.URL)
	}

	weightText, weightFound := s.page.LocateFirst(ctx, detailWeightXPaths)

	if desc, ok := s.page.LocateFirst(ctx, detailDescXPaths); ok {
		item.Description = desc
	} else {
		s.logger.Debug("[kapao] Description missing on %s: keeping list lines", sum.URL)
	}

	if weight, ok := services.Weight(weightText); ok && weightFound {
		item.WeightG = weight
	} else if weight, ok := services.WeightInText(item.Description); ok {
		// No dedicated weight block; fall back to the first
		// unit-qualified quantity in the adopted description. Without
		// one the weight stays 0 for the classification pass to fill.
		item.WeightG = weight
	}

	item.Purity = services.Purity(item.Description)
	item.Material = services.MaterialOf(item.Description, item.Purity)

	return item, nil
}

// itemFromSummary builds the minimal record when the detail page is
// unreachable: list fields only, classified from the label lines.
func itemFromSummary(sum *models.Summary) *models.AuctionItem {
	purity := services.Purity(sum.RawLines + "\n" + sum.Title)
	return &models.AuctionItem{
		URL:         sum.URL,
		Title:       sum.Title,
		Location:    sum.Location,
		ImageURL:    sum.ImageURL,
		Price:       sum.Price,
		Description: sum.RawLines,
		Purity:      purity,
		Material:    services.MaterialOf(sum.RawLines+"\n"+sum.Title, purity),
		RiskFactor:  models.RiskUnanalyzed,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ".."
}
