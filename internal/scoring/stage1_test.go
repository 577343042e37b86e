package scoring

import (
	"testing"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
)

func newStage1(t *testing.T) *Stage1Scorer {
	t.Helper()
	return NewStage1Scorer(logger.NewNop(), Stage1Config{})
}

func TestStage1Scorer_HighMarginScarceListing(t *testing.T) {
	scorer := newStage1(t)

	// $10 cost, $30 price, $5 fees, single seller, marketplace absent:
	// net margin $15, ROI 150%.
	result := scorer.Score(10, &domain.PricingSignals{
		CatalogCode:         "CAT-001",
		SellPrice:           30,
		EstimatedFees:       5,
		SellerCount:         1,
		MarketplaceIsSeller: false,
	})

	if result.NetMargin != 15 {
		t.Errorf("expected net margin 15, got %v", result.NetMargin)
	}
	if result.ROIPercent != 150 {
		t.Errorf("expected ROI 150%%, got %v", result.ROIPercent)
	}

	// 40 (ROI >= 100%) + 20 (1 seller) + 20 (marketplace absent) + 15 (margin >= $10)
	if result.Score != 95 {
		t.Errorf("expected score 95, got %d", result.Score)
	}
	if !result.Passed {
		t.Error("expected item to pass stage 1")
	}
}

func TestStage1Scorer_NegativeMarginFails(t *testing.T) {
	scorer := newStage1(t)

	// $10 cost, $11 price, $3 fees, 15 sellers: net margin -$2.
	result := scorer.Score(10, &domain.PricingSignals{
		CatalogCode:   "CAT-002",
		SellPrice:     11,
		EstimatedFees: 3,
		SellerCount:   15,
	})

	if result.NetMargin != -2 {
		t.Errorf("expected net margin -2, got %v", result.NetMargin)
	}
	if result.Passed {
		t.Error("expected item to fail stage 1")
	}

	// Only the marketplace-absent component can contribute.
	if result.Components["return_on_cost"] != 0 {
		t.Errorf("expected no ROI points on negative margin, got %d", result.Components["return_on_cost"])
	}
	if result.Components["net_margin"] != 0 {
		t.Errorf("expected no margin points on negative margin, got %d", result.Components["net_margin"])
	}
	if result.Score > 20 {
		t.Errorf("expected near-zero score, got %d", result.Score)
	}
}

func TestStage1Scorer_MarketplaceCompetition(t *testing.T) {
	scorer := newStage1(t)

	cases := []struct {
		name     string
		isSeller bool
		quantity int
		want     int
	}{
		{"absent", false, 0, 20},
		{"present_zero_stock", true, 0, 10},
		{"present_in_stock", true, 12, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := scorer.Score(10, &domain.PricingSignals{
				SellPrice:           30,
				EstimatedFees:       5,
				SellerCount:         1,
				MarketplaceIsSeller: tc.isSeller,
				MarketplaceQuantity: tc.quantity,
			})
			if got := result.Components["marketplace_absent"]; got != tc.want {
				t.Errorf("expected %d marketplace points, got %d", tc.want, got)
			}
		})
	}
}

func TestStage1Scorer_SellerScarcityTiers(t *testing.T) {
	scorer := newStage1(t)

	cases := []struct {
		sellers int
		want    int
	}{
		{1, 20},
		{3, 15},
		{5, 10},
		{10, 5},
		{11, 0},
	}

	for _, tc := range cases {
		result := scorer.Score(10, &domain.PricingSignals{
			SellPrice:     30,
			EstimatedFees: 5,
			SellerCount:   tc.sellers,
		})
		if got := result.Components["seller_scarcity"]; got != tc.want {
			t.Errorf("sellers=%d: expected %d scarcity points, got %d", tc.sellers, tc.want, got)
		}
	}
}

func TestStage1Scorer_ConfigurableThreshold(t *testing.T) {
	strict := NewStage1Scorer(logger.NewNop(), Stage1Config{PassThreshold: 96})

	result := strict.Score(10, &domain.PricingSignals{
		SellPrice:     30,
		EstimatedFees: 5,
		SellerCount:   1,
	})

	// Score 95 passes the default cutoff but not a 96 cutoff.
	if result.Passed {
		t.Errorf("expected score %d to fail threshold 96", result.Score)
	}
}
