package kapao

import (
	"context"
	"testing"
	"time"

	"github.com/gamst-shin/goldmine-test/config"
	"github.com/gamst-shin/goldmine-test/models"
	"github.com/gamst-shin/goldmine-test/storage"
	"github.com/gamst-shin/goldmine-test/utils"
)

// fakePager resolves locators from a fixed map, mirroring the real
// adapter's ordered-fallback behaviour without a browser.
type fakePager struct {
	texts    map[string]string
	listHTML string
	visited  []string
}

func (f *fakePager) Navigate(_ context.Context, url string) error {
	f.visited = append(f.visited, url)
	return nil
}

func (f *fakePager) LocateFirst(_ context.Context, xpaths []string) (string, bool) {
	for _, xp := range xpaths {
		if v := f.texts[xp]; v != "" {
			return v, true
		}
	}
	return "", false
}

func (f *fakePager) ClickXPath(_ context.Context, xpath string) error { return nil }

func (f *fakePager) Eval(_ context.Context, js string, out any) error {
	if v, isBool := out.(*bool); isBool {
		*v = true
	}
	return nil
}

func (f *fakePager) OuterHTML(_ context.Context, xpath string) (string, error) {
	return f.listHTML, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ListURL:       "https://auction.example/list",
		ThrottleMinMs: 0,
		ThrottleMaxMs: 0,
		MaxRetries:    1,
	}
}

const twoBlockListHTML = `
<ul>
  <li>
    <a href="https://auction.example/item/1">
      <div><div><img src="https://auction.example/thumb/1.jpg"></div></div>
      <div>
        <dl>
          <dt>물품명</dt><dd><div>24K 골드바 10돈</div></dd>
          <dt>공매가</dt><dd><div>1,200,000원</div></dd>
          <dt>보관지역</dt><dd><div>서울</div></dd>
        </dl>
      </div>
    </a>
  </li>
  <li>
    <div>
      <dl>
        <dt>물품명</dt><dd><div>링크 없는 물품</div></dd>
      </dl>
    </div>
  </li>
</ul>`

func TestParseListSkipsBlockWithoutAnchor(t *testing.T) {
	summaries, skipped := ParseList(twoBlockListHTML, time.Now())

	if len(summaries) != 1 {
		t.Fatalf("expected exactly 1 summary, got %d", len(summaries))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d; want 1", skipped)
	}

	got := summaries[0]
	if got.URL != "https://auction.example/item/1" {
		t.Errorf("url = %q", got.URL)
	}
	if got.Title != "24K 골드바 10돈" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Price != 1200000 {
		t.Errorf("price = %d; want 1200000", got.Price)
	}
	if got.Location != "서울" {
		t.Errorf("location = %q; want 서울", got.Location)
	}
	if got.ImageURL != "https://auction.example/thumb/1.jpg" {
		t.Errorf("image = %q", got.ImageURL)
	}
}

func TestParseListTitleFallback(t *testing.T) {
	html := `<ul><li><a href="/item/9"><span class="tit">이름표 물품</span></a></li></ul>`

	summaries, skipped := ParseList(html, time.Now())
	if len(summaries) != 1 || skipped != 0 {
		t.Fatalf("got %d summaries, %d skipped", len(summaries), skipped)
	}
	if summaries[0].Title != "이름표 물품" {
		t.Errorf("title = %q; want .tit fallback", summaries[0].Title)
	}
}

func TestEnrichAdoptsFirstNonEmptyDescription(t *testing.T) {
	// First two description candidates are absent; the generic
	// whole-container position carries the text.
	pager := &fakePager{texts: map[string]string{
		detailDescXPaths[2]: "총중량 5.0g 18K 반지",
	}}
	s := New(testConfig(), utils.NewLogger(), pager, storage.NewMemStore(), nil)

	sum := &models.Summary{URL: "https://auction.example/item/7", Title: "반지", Price: 300000}
	item, err := s.Enrich(context.Background(), sum)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if item.Description != "총중량 5.0g 18K 반지" {
		t.Errorf("description = %q; want third candidate adopted", item.Description)
	}
	if item.WeightG != 5.0 {
		t.Errorf("weight = %g; want 5.0", item.WeightG)
	}
	if item.Purity != models.Purity18K {
		t.Errorf("purity = %s; want 18K", item.Purity)
	}
	if item.Material != models.MaterialGold {
		t.Errorf("material = %s; want GOLD", item.Material)
	}
	if item.Price != 300000 {
		t.Errorf("price = %d; want list price kept when detail block missing", item.Price)
	}
}

// With no weight block, a karat grade leading the description must not
// be read as grams; only the unit-qualified quantity counts, and a
// description without one leaves the weight 0.
func TestEnrichWeightFallbackIgnoresKaratGrade(t *testing.T) {
	pager := &fakePager{texts: map[string]string{
		detailDescXPaths[0]: "18K 금반지 및 큐빅 등 총중량 5.0g",
	}}
	s := New(testConfig(), utils.NewLogger(), pager, storage.NewMemStore(), nil)

	item, err := s.Enrich(context.Background(), &models.Summary{URL: "https://auction.example/item/11"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if item.WeightG != 5.0 {
		t.Errorf("weight = %g; want 5.0, never the karat grade", item.WeightG)
	}

	pager = &fakePager{texts: map[string]string{
		detailDescXPaths[0]: "18K 금반지 2점",
	}}
	s = New(testConfig(), utils.NewLogger(), pager, storage.NewMemStore(), nil)

	item, err = s.Enrich(context.Background(), &models.Summary{URL: "https://auction.example/item/12"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if item.WeightG != 0 {
		t.Errorf("weight = %g; want 0 when no quantity carries a unit", item.WeightG)
	}
}

func TestEnrichPrefersDetailFields(t *testing.T) {
	pager := &fakePager{texts: map[string]string{
		detailPriceXPaths[0]:  "공매가\n1,500,000원",
		detailWeightXPaths[0]: "중량 : 3.75g",
		detailDescXPaths[0]:   "순금 999 골드바 1돈",
	}}
	s := New(testConfig(), utils.NewLogger(), pager, storage.NewMemStore(), nil)

	sum := &models.Summary{URL: "https://auction.example/item/8", Price: 100}
	item, err := s.Enrich(context.Background(), sum)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if item.Price != 1500000 {
		t.Errorf("price = %d; want detail-page 1500000", item.Price)
	}
	if item.WeightG != 3.75 {
		t.Errorf("weight = %g; want 3.75 from the weight block", item.WeightG)
	}
	if item.Purity != models.Purity24K {
		t.Errorf("purity = %s; want 24K", item.Purity)
	}
}

func TestRunUpsertsHarvestedItems(t *testing.T) {
	store := storage.NewMemStore()
	pager := &fakePager{
		listHTML: twoBlockListHTML,
		texts: map[string]string{
			listXPath + "/li":   "물품",
			detailDescXPaths[0]: "순금 골드바 10돈 보증서 포함",
		},
	}
	s := New(testConfig(), utils.NewLogger(), pager, store, nil)

	summaries, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("harvested %d summaries; want 1", len(summaries))
	}

	items, total, err := store.SearchItems("", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("stored %d items; want 1", total)
	}
	if items[0].RiskFactor != models.RiskUnanalyzed {
		t.Errorf("risk = %q; want unanalyzed sentinel without a classifier", items[0].RiskFactor)
	}

	// A second run re-visits the same URL and must update, not duplicate.
	s2 := New(testConfig(), utils.NewLogger(), pager, store, nil)
	if _, err := s2.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	_, total, err = store.SearchItems("", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("after re-run: %d items; want 1", total)
	}
}

func TestParseHistoryListSyntheticTitles(t *testing.T) {
	html := `<ul>
		<li><a href="/past/1"><span class="tit">24K 목걸이</span></a></li>
		<li><a href="/past/2"></a></li>
		<li><span class="tit">링크 없음</span></li>
	</ul>`

	entries := parseHistoryList(html, 15)
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	if entries[0].title != "24K 목걸이" {
		t.Errorf("title = %q", entries[0].title)
	}
	if entries[1].title != "15회차_2번_물품" {
		t.Errorf("synthetic title = %q", entries[1].title)
	}
}

func TestHistoryCollectInsertIfAbsent(t *testing.T) {
	store := storage.NewMemStore()
	pager := &fakePager{
		listHTML: `<ul><li><a href="https://auction.example/past/1"><span class="tit">24K 목걸이</span></a></li></ul>`,
		texts: map[string]string{
			listXPath + "/li":     "물품",
			detailPriceXPaths[0]:  "공매가 800,000원",
			detailWeightXPaths[0]: "중량 7.5g",
			detailDescXPaths[0]:   "순금 999 목걸이",
		},
	}
	s := New(testConfig(), utils.NewLogger(), pager, store, nil)
	hc := NewHistoryCollector(s, store)

	if err := hc.Collect(context.Background(), 15, 15); err != nil {
		t.Fatalf("collect: %v", err)
	}
	// Same season again: the record exists, the pass must not duplicate it.
	if err := hc.Collect(context.Background(), 15, 15); err != nil {
		t.Fatalf("re-collect: %v", err)
	}

	recs, err := store.FetchHistory()
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d history rows; want 1", len(recs))
	}
	if recs[0].Price != 800000 || recs[0].Weight != 7.5 || recs[0].Season != 15 {
		t.Errorf("record = %+v", recs[0])
	}
}
