package kapao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gamst-shin/goldmine-test/models"
	"github.com/gamst-shin/goldmine-test/services"
	"github.com/gamst-shin/goldmine-test/storage"
)

// seasonSwitchJS drives the site's own round selector. set_ps is the
// site's global; calling it reloads the list for that round.
const seasonSwitchJS = `
(function(season) {
	if (typeof set_ps !== 'function') return false;
	set_ps(String(season), String(season) + '회차');
	return true;
})(%d)`

// HistoryCollector walks closed auction rounds and appends their
// outcomes to the immutable history log. A URL already in the log is
// skipped, never rewritten, so re-running a season range is safe.
type HistoryCollector struct {
	scraper *Scraper
	history storage.HistoryStore
}

// NewHistoryCollector wraps a Scraper with the history store.
func NewHistoryCollector(scraper *Scraper, history storage.HistoryStore) *HistoryCollector {
	return &HistoryCollector{scraper: scraper, history: history}
}

// Collect walks seasons from..to inclusive. A season that cannot be
// loaded is logged and skipped; per-item parse failures likewise never
// stop the pass.
func (hc *HistoryCollector) Collect(ctx context.Context, from, to int) error {
	s := hc.scraper

	for season := from; season <= to; season++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("[history] Season %d: collecting", season)

		entries, err := hc.seasonEntries(ctx, season)
		if err != nil {
			s.logger.Warn("[history] Season %d failed: %v (skipping)", season, err)
			continue
		}
		if len(entries) == 0 {
			s.logger.Info("[history] Season %d has no precious-metal lots", season)
			continue
		}
		s.logger.Info("[history] Season %d: %d lots found", season, len(entries))

		for _, e := range entries {
			s.throttle.Wait(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}

			rec, err := hc.collectDetail(ctx, season, e)
			if err != nil {
				s.logger.Warn("[history] Detail failed for %s: %v (skipping)", e.url, err)
				continue
			}

			inserted, err := hc.history.InsertHistory(rec)
			if err != nil {
				s.logger.Error("[history] Insert failed for %s: %v", rec.URL, err)
				continue
			}
			if inserted {
				s.logger.Info("[history] Saved %s | %.2fg | %d원", truncate(rec.Title, 20), rec.Weight, rec.Price)
			} else {
				s.logger.Debug("[history] Already stored: %s", rec.URL)
			}
		}
	}
	return nil
}

type listEntry struct {
	title string
	url   string
}

// seasonEntries switches the site to the given round, applies the
// category filter and search, and returns the detail links.
func (hc *HistoryCollector) seasonEntries(ctx context.Context, season int) ([]listEntry, error) {
	s := hc.scraper

	var html string
	err := s.retry.Do(ctx, fmt.Sprintf("history-season-%d", season), func() error {
		if err := s.page.Navigate(ctx, s.cfg.ListURL); err != nil {
			return err
		}

		var switched bool
		if err := s.page.Eval(ctx, fmt.Sprintf(seasonSwitchJS, season), &switched); err != nil {
			return err
		}
		if !switched {
			return fmt.Errorf("kapao: season switch hook missing")
		}
		time.Sleep(2 * time.Second)

		if err := s.applyCategoryFilter(ctx); err != nil {
			return err
		}
		if err := s.submitSearch(ctx); err != nil {
			return err
		}

		var err error
		html, err = s.listHTML(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if html == "" {
		return nil, nil
	}

	return parseHistoryList(html, season), nil
}

// parseHistoryList extracts (title, url) pairs from the season list.
// An entry without an anchor is unusable; a missing title gets a
// synthetic placeholder so the lot is still recorded.
func parseHistoryList(html string, season int) []listEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var entries []listEntry
	doc.Find("li").Each(func(i int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		title := services.NormalizeText(li.Find(".tit").First().Text())
		if title == "" {
			title = fmt.Sprintf("%d회차_%d번_물품", season, i+1)
		}

		entries = append(entries, listEntry{title: title, url: strings.TrimSpace(href)})
	})
	return entries
}

// collectDetail reads price, gross weight and the purity text from one
// closed lot's detail page. Missing blocks degrade to zero values and
// the shortest usable description; they never fail the record.
func (hc *HistoryCollector) collectDetail(ctx context.Context, season int, e listEntry) (*models.HistoryRecord, error) {
	s := hc.scraper

	if err := s.page.Navigate(ctx, e.url); err != nil {
		return nil, err
	}

	rec := &models.HistoryRecord{
		Season:     season,
		Title:      e.title,
		URL:        e.url,
		PurityInfo: "정보없음",
	}

	if text, ok := s.page.LocateFirst(ctx, detailPriceXPaths); ok {
		rec.Price, _ = services.Price(text)
	}
	if text, ok := s.page.LocateFirst(ctx, detailWeightXPaths); ok {
		rec.Weight, _ = services.Weight(text)
	}
	if text, ok := s.page.LocateFirst(ctx, detailDescXPaths); ok {
		rec.PurityInfo = truncate(services.NormalizeText(text), 200)
	}

	return rec, nil
}
