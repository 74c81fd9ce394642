package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gamst-shin/goldmine-test/models"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// prompt instructs the model to act as an appraiser and answer in bare
// JSON. The don conversion and the conservative stone deduction mirror
// what a human appraiser would do with these listings.
const promptTemplate = `너는 전문 귀금속 감정사다. 아래의 [공매 물품 설명]을 분석해서 정확한 JSON 데이터를 추출해라.

[분석 규칙]
1. material: "GOLD", "SILVER", "DIAMOND", "OTHERS" 중 하나.
2. purity: 금일 경우 "24K", "18K", "14K", "UNKNOWN". (순금=24K)
3. weight_g: 전체 중량이 아니라 '순수 금속의 추정 무게'를 그램(g) 단위로 환산해서 숫자만 출력.
   - 1돈 = 3.75g
   - "큐빅", "알" 등이 포함된 경우, 장식 무게를 제외하고 보수적으로 추정.
4. confidence: 분석 확신도 (0.0 ~ 1.0). 설명이 모호하면 낮게.

[공매 물품 설명]
%s

[출력 형식]
오직 JSON 포맷만 출력. 마크다운 코드블럭 없이 순수 텍스트 JSON만.`

// Client calls the remote text-classification service and shields the
// pipeline from everything that can go wrong with it. Classify never
// fails its caller: on any transport, decoding or validation problem it
// returns the safe default alongside the error, and the returned
// Classification is always usable.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewClient creates a classification client for the given model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Default is the classification recorded when analysis is impossible:
// unknown material, zero weight, high risk. High risk keeps the record
// out of valuation but visible for a later re-run.
func Default() models.Classification {
	return models.Classification{
		Material: models.MaterialUnknown,
		Purity:   models.PurityUnknown,
		WeightG:  0,
		Risk:     models.RiskHigh,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// rawGuess is the untrusted shape decoded from the model's reply. The
// service has been observed returning either "confidence" or "risk",
// so both are accepted.
type rawGuess struct {
	Material   string   `json:"material"`
	Purity     string   `json:"purity"`
	WeightG    *float64 `json:"weight_g"`
	Confidence *float64 `json:"confidence"`
	Risk       string   `json:"risk"`
}

// Classify sends the description to the remote appraiser and returns a
// validated Classification. On any failure the safe default comes back
// together with a non-nil error for the caller to log; the error is
// informational and must not abort a batch.
func (c *Client) Classify(ctx context.Context, description string) (models.Classification, error) {
	text, err := c.generate(ctx, fmt.Sprintf(promptTemplate, description))
	if err != nil {
		return Default(), err
	}
	return Parse(text)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("classify: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify: call remote: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("classify: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classify: remote status %d: %s", resp.StatusCode, firstLine(raw))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("classify: decode envelope: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("classify: empty candidate list")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// Parse validates the model's reply text against the strict contract.
// Fenced-code wrapping is stripped first; the remainder must decode as
// a flat JSON mapping with known enum values. Anything else yields the
// safe default and an error describing what was wrong.
func Parse(text string) (models.Classification, error) {
	clean := StripFences(text)

	var guess rawGuess
	if err := json.Unmarshal([]byte(clean), &guess); err != nil {
		return Default(), fmt.Errorf("classify: malformed reply: %w", err)
	}

	material, ok := parseMaterial(guess.Material)
	if !ok {
		return Default(), fmt.Errorf("classify: bad material %q", guess.Material)
	}
	purity, ok := parsePurity(guess.Purity)
	if !ok {
		return Default(), fmt.Errorf("classify: bad purity %q", guess.Purity)
	}

	result := models.Classification{
		Material: material,
		Purity:   purity,
	}

	if guess.WeightG != nil {
		if *guess.WeightG < 0 {
			return Default(), fmt.Errorf("classify: negative weight %g", *guess.WeightG)
		}
		result.WeightG = *guess.WeightG
	}

	switch {
	case guess.Confidence != nil:
		conf := *guess.Confidence
		if conf < 0 || conf > 1 {
			return Default(), fmt.Errorf("classify: confidence %g out of range", conf)
		}
		result.Confidence = conf
		result.Risk = riskFromConfidence(conf)
	case guess.Risk != "":
		risk, ok := parseRisk(guess.Risk)
		if !ok {
			return Default(), fmt.Errorf("classify: bad risk %q", guess.Risk)
		}
		result.Risk = risk
	default:
		result.Risk = models.RiskHigh
	}

	return result, nil
}

// StripFences removes a surrounding markdown code fence, with or
// without a language tag, from the model's reply.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseMaterial(s string) (models.Material, bool) {
	switch models.Material(strings.ToUpper(strings.TrimSpace(s))) {
	case models.MaterialGold:
		return models.MaterialGold, true
	case models.MaterialSilver:
		return models.MaterialSilver, true
	case models.MaterialDiamond:
		return models.MaterialDiamond, true
	case models.MaterialOthers:
		return models.MaterialOthers, true
	case models.MaterialUnknown, "":
		return models.MaterialUnknown, true
	}
	return models.MaterialUnknown, false
}

func parsePurity(s string) (models.Purity, bool) {
	switch models.Purity(strings.ToUpper(strings.TrimSpace(s))) {
	case models.Purity24K:
		return models.Purity24K, true
	case models.Purity18K:
		return models.Purity18K, true
	case models.Purity14K:
		return models.Purity14K, true
	case models.PurityPlatinum:
		return models.PurityPlatinum, true
	case models.PuritySilver:
		return models.PuritySilver, true
	case models.PurityUnknown, "":
		return models.PurityUnknown, true
	}
	return models.PurityUnknown, false
}

func parseRisk(s string) (models.Risk, bool) {
	switch models.Risk(strings.ToUpper(strings.TrimSpace(s))) {
	case models.RiskLow:
		return models.RiskLow, true
	case models.RiskHigh:
		return models.RiskHigh, true
	}
	return models.RiskHigh, false
}

// riskFromConfidence collapses the numeric confidence into the coarse
// marker the batch pass keys on. 0.6 splits the model's usual scores
// into clearly-usable and needs-review halves.
func riskFromConfidence(conf float64) models.Risk {
	if conf >= 0.6 {
		return models.RiskLow
	}
	return models.RiskHigh
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
