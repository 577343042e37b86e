package scoring

import (
	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
)

// Stage-1 component maxima. The four components sum to 100.
const (
	stage1MaxROI         = 40
	stage1MaxScarcity    = 20
	stage1MaxMarketplace = 20
	stage1MaxMargin      = 20

	marketplaceZeroStockPoints = 10

	// DefaultPassThreshold is the default Stage-1 cutoff. Items scoring
	// below it are terminally not_profitable and never reach Stage 2.
	DefaultPassThreshold = 50
)

// roiTiers awards up to 40 points for return on cost, in percent.
var roiTiers = []Tier{
	{Threshold: 100, Points: 40},
	{Threshold: 50, Points: 30},
	{Threshold: 30, Points: 20},
	{Threshold: 15, Points: 10},
}

// scarcityTiers awards up to 20 points for low seller counts.
var scarcityTiers = []Tier{
	{Threshold: 1, Points: 20},
	{Threshold: 3, Points: 15},
	{Threshold: 5, Points: 10},
	{Threshold: 10, Points: 5},
}

// marginTiers awards up to 20 points for absolute net margin in currency
// units, banded analogously to the return-on-cost tiers.
var marginTiers = []Tier{
	{Threshold: 20, Points: 20},
	{Threshold: 10, Points: 15},
	{Threshold: 5, Points: 10},
	{Threshold: 2, Points: 5},
}

// Stage1Config holds Stage-1 scorer settings.
type Stage1Config struct {
	// PassThreshold is the minimum stage1 score to survive into Stage 2.
	PassThreshold int
}

// Stage1Result is the outcome of the quick filter for one item.
type Stage1Result struct {
	Score      int            `json:"score"`  // 0-100
	Passed     bool           `json:"passed"` // Score >= PassThreshold
	NetMargin  float64        `json:"net_margin"`
	ROIPercent float64        `json:"roi_percent"`
	Components map[string]int `json:"components"`
}

// Stage1Scorer is the cheap first-pass filter. It only consumes pricing
// provider signals, so failing items cost no history-provider budget.
type Stage1Scorer struct {
	logger logger.Logger
	config Stage1Config
}

// NewStage1Scorer creates a Stage-1 scorer.
func NewStage1Scorer(log logger.Logger, cfg Stage1Config) *Stage1Scorer {
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	return &Stage1Scorer{
		logger: log,
		config: cfg,
	}
}

// Score computes the stage1 score for one item from its acquisition cost
// and pricing signals.
func (s *Stage1Scorer) Score(acquisitionCost float64, pricing *domain.PricingSignals) *Stage1Result {
	netMargin := pricing.SellPrice - pricing.EstimatedFees - acquisitionCost

	roiPercent := 0.0
	if acquisitionCost > 0 {
		roiPercent = netMargin / acquisitionCost * 100
	}

	components := map[string]int{
		"return_on_cost":     0,
		"seller_scarcity":    scoreAtMost(scarcityTiers, float64(pricing.SellerCount)),
		"marketplace_absent": s.marketplacePoints(pricing),
		"net_margin":         0,
	}

	// A non-positive margin earns nothing from the margin-derived
	// components regardless of tier tables.
	if netMargin > 0 {
		components["return_on_cost"] = scoreAtLeast(roiTiers, roiPercent)
		components["net_margin"] = scoreAtLeast(marginTiers, netMargin)
	}

	total := 0
	for _, pts := range components {
		total += pts
	}
	total = clampScore(total)

	result := &Stage1Result{
		Score:      total,
		Passed:     total >= s.config.PassThreshold,
		NetMargin:  netMargin,
		ROIPercent: roiPercent,
		Components: components,
	}

	s.logger.Debug("Stage-1 score calculated",
		logger.String("catalog_code", pricing.CatalogCode),
		logger.Int("score", total),
		logger.Bool("passed", result.Passed),
		logger.Float64("net_margin", netMargin),
	)

	return result
}

// marketplacePoints scores the absence of the marketplace operator as a
// competing seller (0-20 points).
func (s *Stage1Scorer) marketplacePoints(pricing *domain.PricingSignals) int {
	if !pricing.MarketplaceIsSeller {
		return stage1MaxMarketplace
	}
	if pricing.MarketplaceQuantity == 0 {
		return marketplaceZeroStockPoints
	}
	return 0
}

// PassThreshold returns the configured Stage-1 cutoff.
func (s *Stage1Scorer) PassThreshold() int {
	return s.config.PassThreshold
}
