package services

import (
	"context"

	"github.com/gamst-shin/goldmine-test/models"
	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
)

// Classifier is the remote appraisal capability. Implementations must
// return a usable Classification even when err is non-nil; the error
// only reports that the safe default came back.
type Classifier interface {
	Classify(ctx context.Context, description string) (models.Classification, error)
}

// Analyzer blends remote classifications into auction items, either
// inline during enrichment or as a batch pass over stored records that
// still carry the unanalyzed sentinel.
type Analyzer struct {
	logger     *utils.Logger
	classifier Classifier
	store      storage.ItemStore
}

// NewAnalyzer creates an Analyzer. store may be nil when the analyzer
// is only used inline.
func NewAnalyzer(logger *utils.Logger, classifier Classifier, store storage.ItemStore) *Analyzer {
	return &Analyzer{logger: logger, classifier: classifier, store: store}
}

// Analyze classifies one item in place. A failed remote call keeps the
// locally-extracted fields and marks the item high risk; a successful
// one merges the remote guess with remote fields winning only where
// they actually carry information.
func (a *Analyzer) Analyze(ctx context.Context, item *models.AuctionItem) bool {
	cls, err := a.classifier.Classify(ctx, item.Description)
	if err != nil {
		a.logger.Warn("[analyzer] Classification failed for %s: %v (keeping local fields)", item.URL, err)
		item.RiskFactor = models.RiskHigh
		return false
	}

	Merge(item, cls)
	return true
}

// Merge applies a well-formed remote classification to an item. Remote
// material, purity and weight take precedence only when present; the
// confidence and risk marker always come from the classification.
func Merge(item *models.AuctionItem, cls models.Classification) {
	if cls.Material != models.MaterialUnknown {
		item.Material = cls.Material
	}
	if cls.Purity != models.PurityUnknown {
		item.Purity = cls.Purity
	}
	if cls.WeightG > 0 {
		item.WeightG = cls.WeightG
	}
	item.Confidence = cls.Confidence
	item.RiskFactor = cls.Risk
}

// Run is the batch pass: classify every stored record still marked
// unanalyzed and write the result back through the upsert store. One
// record's failure never halts the batch. The returned counts cover
// every record exactly once: classified-and-stored versus everything
// else (safe default or failed write-back).
func (a *Analyzer) Run(ctx context.Context) (classified, defaulted int, err error) {
	items, err := a.store.UnanalyzedItems()
	if err != nil {
		return 0, 0, err
	}
	a.logger.Info("[analyzer] Batch start: %d unanalyzed items", len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			return classified, defaulted, ctx.Err()
		}

		good := a.Analyze(ctx, item)

		if err := a.store.UpsertItem(item); err != nil {
			a.logger.Error("[analyzer] Write-back failed for %s: %v", item.URL, err)
			good = false
		}

		// Each record counts exactly once, whichever step let it down.
		if good {
			classified++
		} else {
			defaulted++
		}
	}

	a.logger.Info("[analyzer] Batch done: %d classified, %d defaulted", classified, defaulted)
	return classified, defaulted, nil
}
