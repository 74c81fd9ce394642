package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gamst-shin/goldmine-test/models"
)

// GramsPerDon converts the traditional Korean precious-metal unit:
// 1 don = 3.75 grams.
const GramsPerDon = 3.75

var (
	// digitsRegexp strips everything that is not a digit
	digitsRegexp = regexp.MustCompile(`\D`)
	// numberRegexp captures the first integer or decimal token
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// weightUnitRegexp captures a number only when a weight unit
	// follows it, so karat grades ("18K") and counts never read as grams
	weightUnitRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([gG]|그램|돈)`)
)

// purityRule maps a set of keywords to a purity grade. Rules are tested
// in slice order and the first hit wins: a "995" fragment must be read
// as near-pure gold even when "18K" or "은" also appears later in the
// same description, so higher grades are always tested first.
type purityRule struct {
	grade    models.Purity
	keywords []string
}

var purityRules = []purityRule{
	{models.Purity24K, []string{"24K", "순금", "AU99", "999", "995"}},
	{models.Purity18K, []string{"18K", "AU750", "750"}},
	{models.Purity14K, []string{"14K", "AU585", "585"}},
	{models.PurityPlatinum, []string{"백금", "PT", "PLATINUM", "플래티넘"}},
	{models.PuritySilver, []string{"실버", "SILVER", "은"}},
}

// Price extracts a whole-won amount from free text like "1,200,000 원".
// It never fails: ok is false and the value 0 when the text carries no
// digits at all.
func Price(text string) (int64, bool) {
	clean := digitsRegexp.ReplaceAllString(text, "")
	if clean == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Weight extracts the first numeric token from text like "중량 : 3.75g"
// as grams. ok is false and the value 0 when no number is present.
func Weight(text string) (float64, bool) {
	match := numberRegexp.FindString(text)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// WeightInText finds the first unit-anchored weight in free prose like
// "18K 금반지 및 큐빅 등 총중량 5.0g". Unlike Weight it only accepts a
// number directly followed by a gram or don unit, so the leading karat
// grade stays out of the weight field. A 돈 quantity converts to grams;
// ok is false when the text mentions no unit-qualified quantity.
func WeightInText(text string) (float64, bool) {
	m := weightUnitRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "돈" {
		return DonToGrams(f), true
	}
	return f, true
}

// Purity classifies the metal fineness mentioned in a description.
// Matching is case-insensitive and first-match-wins over the ordered
// rule table; text mentioning no known grade maps to UNKNOWN.
func Purity(text string) models.Purity {
	upper := strings.ToUpper(text)
	for _, rule := range purityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(upper, kw) {
				return rule.grade
			}
		}
	}
	return models.PurityUnknown
}

// MaterialOf guesses the dominant material from the description and an
// already-extracted purity. Diamonds are checked first since stones are
// usually set in a gold band and both keywords co-occur.
func MaterialOf(text string, purity models.Purity) models.Material {
	upper := strings.ToUpper(text)

	for _, kw := range []string{"다이아", "DIAMOND"} {
		if strings.Contains(upper, kw) {
			return models.MaterialDiamond
		}
	}

	switch purity {
	case models.Purity24K, models.Purity18K, models.Purity14K:
		return models.MaterialGold
	case models.PuritySilver:
		return models.MaterialSilver
	case models.PurityPlatinum:
		return models.MaterialOthers
	}

	for _, kw := range []string{"골드", "GOLD", "금"} {
		if strings.Contains(upper, kw) {
			return models.MaterialGold
		}
	}
	if strings.Contains(upper, "귀금속") || strings.Contains(upper, "시계") {
		return models.MaterialOthers
	}
	return models.MaterialUnknown
}

// DonToGrams converts a quantity in don to grams.
func DonToGrams(don float64) float64 {
	return don * GramsPerDon
}

// NormalizeText strips leading/trailing whitespace and collapses internal whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
