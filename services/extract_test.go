package services

import (
	"testing"

	"github.com/gamst-shin/goldmine-test/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1,200,000원", 1200000, true},
		{"공매가\n1,234,000 원", 1234000, true},
		{"500", 500, true},
		{"", 0, false},
		{"가격 미정", 0, false},
		{"no digits here", 0, false},
	}

	for _, tt := range tests {
		got, ok := Price(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Price(%q) = (%d, %v); want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"중량 : 3.75g", 3.75, true},
		{"총중량 5.0g 18K 반지", 5.0, true},
		{"10돈", 10, true},
		{"", 0, false},
		{"중량 미상", 0, false},
	}

	for _, tt := range tests {
		got, ok := Weight(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Weight(%q) = (%g, %v); want (%g, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

// Descriptions often lead with the karat grade; only a unit-qualified
// quantity may read as a weight.
func TestWeightInText(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"18K 금반지 및 큐빅 등 총중량 5.0g", 5.0, true},
		{"총중량 5.0g 18K 반지", 5.0, true},
		{"순금 골드바 10돈 보증서 포함", 37.5, true},
		{"중량 3.75 g", 3.75, true},
		{"18K 금반지 2점", 0, false},
		{"중량 미상", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := WeightInText(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("WeightInText(%q) = (%g, %v); want (%g, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPurity(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Purity
	}{
		{"Au999 순금 팔찌", models.Purity24K},
		{"18K 750 반지", models.Purity18K},
		{"14k 목걸이", models.Purity14K},
		{"백금 PT950", models.PurityPlatinum},
		{"실버 브로치", models.PuritySilver},
		{"기타 소재", models.PurityUnknown},
		{"", models.PurityUnknown},
	}

	for _, tt := range tests {
		if got := Purity(tt.raw); got != tt.want {
			t.Errorf("Purity(%q) = %s; want %s", tt.raw, got, tt.want)
		}
	}
}

// A lower grade mentioned alongside a higher one must not win: the rule
// table is ordered high to low and the first match is taken.
func TestPurityPriorityOrdering(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Purity
	}{
		{"995 함량, 18K 도금", models.Purity24K},
		{"순금 도금 은수저", models.Purity24K},
		{"18K 반지, 실버 체인 포함", models.Purity18K},
	}

	for _, tt := range tests {
		if got := Purity(tt.raw); got != tt.want {
			t.Errorf("Purity(%q) = %s; want %s", tt.raw, got, tt.want)
		}
	}
}

func TestMaterialOf(t *testing.T) {
	tests := []struct {
		raw    string
		purity models.Purity
		want   models.Material
	}{
		{"다이아몬드 0.5ct 18K 반지", models.Purity18K, models.MaterialDiamond},
		{"순금 골드바", models.Purity24K, models.MaterialGold},
		{"실버 수저 세트", models.PuritySilver, models.MaterialSilver},
		{"백금 PT950 반지", models.PurityPlatinum, models.MaterialOthers},
		{"골드 도금 시계", models.PurityUnknown, models.MaterialGold},
		{"명품 시계", models.PurityUnknown, models.MaterialOthers},
		{"알 수 없는 물건", models.PurityUnknown, models.MaterialUnknown},
	}

	for _, tt := range tests {
		if got := MaterialOf(tt.raw, tt.purity); got != tt.want {
			t.Errorf("MaterialOf(%q, %s) = %s; want %s", tt.raw, tt.purity, got, tt.want)
		}
	}
}

func TestDonToGrams(t *testing.T) {
	if got := DonToGrams(10); got != 37.5 {
		t.Errorf("DonToGrams(10) = %g; want 37.5", got)
	}
	if got := DonToGrams(1); got != 3.75 {
		t.Errorf("DonToGrams(1) = %g; want 3.75", got)
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  물품명:   순금  반지\n\t세트 "); got != "물품명: 순금 반지 세트" {
		t.Errorf("NormalizeText = %q", got)
	}
}
