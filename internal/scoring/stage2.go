package scoring

import (
	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
)

// Stage-2 component maxima. The nine components sum to 100.
const (
	stage2MaxROI              = 25
	stage2MaxRank             = 20
	stage2MaxRankPercentile   = 15
	stage2MaxVelocity         = 15
	stage2MaxScarcity         = 10
	stage2MaxNoHazmat         = 5
	stage2MaxMarketplace      = 5
	stage2MaxMarketplaceStock = 3
	stage2MaxNoManufacturer   = 2
)

// Default classification bands on the final score.
const (
	DefaultHighlyProfitableMin = 70
	DefaultProfitableMin       = 50
	DefaultMarginalMin         = 30
)

// stage2ROITiers awards up to 25 points for return on cost, in percent.
var stage2ROITiers = []Tier{
	{Threshold: 100, Points: 25},
	{Threshold: 75, Points: 20},
	{Threshold: 50, Points: 15},
	{Threshold: 30, Points: 10},
	{Threshold: 15, Points: 5},
}

// rankTiers awards up to 20 points for popularity rank; lower rank is a
// better-selling item.
var rankTiers = []Tier{
	{Threshold: 1000, Points: 20},
	{Threshold: 5000, Points: 16},
	{Threshold: 10000, Points: 12},
	{Threshold: 50000, Points: 8},
	{Threshold: 100000, Points: 4},
}

// rankPercentileTiers awards up to 15 points for rank as a percentage of
// the item's category; smaller is better.
var rankPercentileTiers = []Tier{
	{Threshold: 1, Points: 15},
	{Threshold: 3, Points: 12},
	{Threshold: 5, Points: 9},
	{Threshold: 10, Points: 6},
	{Threshold: 20, Points: 3},
}

// velocityTiers awards up to 15 points for estimated monthly unit velocity.
var velocityTiers = []Tier{
	{Threshold: 300, Points: 15},
	{Threshold: 100, Points: 12},
	{Threshold: 50, Points: 9},
	{Threshold: 20, Points: 6},
	{Threshold: 5, Points: 3},
}

// stage2ScarcityTiers awards up to 10 points for low seller counts.
var stage2ScarcityTiers = []Tier{
	{Threshold: 1, Points: 10},
	{Threshold: 3, Points: 8},
	{Threshold: 5, Points: 5},
	{Threshold: 10, Points: 3},
}

// Stage2Config holds the classification bands for the final score.
type Stage2Config struct {
	HighlyProfitableMin int
	ProfitableMin       int
	MarginalMin         int
}

// SetDefaults applies the default bands where unset.
func (c *Stage2Config) SetDefaults() {
	if c.HighlyProfitableMin <= 0 {
		c.HighlyProfitableMin = DefaultHighlyProfitableMin
	}
	if c.ProfitableMin <= 0 {
		c.ProfitableMin = DefaultProfitableMin
	}
	if c.MarginalMin <= 0 {
		c.MarginalMin = DefaultMarginalMin
	}
}

// Stage2Result is the outcome of the deep analysis for one item.
type Stage2Result struct {
	Score          int                   `json:"score"` // 0-100
	Classification domain.Classification `json:"classification"`
	Components     map[string]int        `json:"components"`
}

// Stage2Scorer is the expensive second pass, run only on Stage-1 survivors.
// It folds rank/demand history and the two binary risk flags into the final
// weighted score.
type Stage2Scorer struct {
	logger logger.Logger
	config Stage2Config
}

// NewStage2Scorer creates a Stage-2 scorer.
func NewStage2Scorer(log logger.Logger, cfg Stage2Config) *Stage2Scorer {
	cfg.SetDefaults()
	return &Stage2Scorer{
		logger: log,
		config: cfg,
	}
}

// Score computes the final score and classification for one Stage-1
// survivor from its pricing and history signals.
func (s *Stage2Scorer) Score(acquisitionCost float64, pricing *domain.PricingSignals, history *domain.HistorySignals) *Stage2Result {
	netMargin := pricing.SellPrice - pricing.EstimatedFees - acquisitionCost

	roiPercent := 0.0
	if acquisitionCost > 0 {
		roiPercent = netMargin / acquisitionCost * 100
	}

	components := map[string]int{
		"return_on_cost":         0,
		"sales_rank":             0,
		"rank_percentile":        0,
		"monthly_velocity":       scoreAtLeast(velocityTiers, history.MonthlyVelocity),
		"seller_scarcity":        scoreAtMost(stage2ScarcityTiers, float64(pricing.SellerCount)),
		"no_hazmat":              0,
		"marketplace_absent":     0,
		"marketplace_zero_stock": 0,
		"no_manufacturer":        0,
	}

	if netMargin > 0 {
		components["return_on_cost"] = scoreAtLeast(stage2ROITiers, roiPercent)
	}

	// A zero rank means the provider had no rank data; award nothing
	// rather than treating it as the best possible rank.
	if history.SalesRank > 0 {
		components["sales_rank"] = scoreAtMost(rankTiers, float64(history.SalesRank))
	}
	if history.RankPercentile > 0 {
		components["rank_percentile"] = scoreAtMost(rankPercentileTiers, history.RankPercentile)
	}

	if !history.Hazmat {
		components["no_hazmat"] = stage2MaxNoHazmat
	}
	if !pricing.MarketplaceIsSeller {
		components["marketplace_absent"] = stage2MaxMarketplace
	} else if pricing.MarketplaceQuantity == 0 {
		components["marketplace_zero_stock"] = stage2MaxMarketplaceStock
	}
	if !history.ManufacturerIsSeller {
		components["no_manufacturer"] = stage2MaxNoManufacturer
	}

	total := 0
	for _, pts := range components {
		total += pts
	}
	total = clampScore(total)

	result := &Stage2Result{
		Score:          total,
		Classification: s.classify(total),
		Components:     components,
	}

	s.logger.Debug("Stage-2 score calculated",
		logger.String("catalog_code", pricing.CatalogCode),
		logger.Int("score", total),
		logger.String("classification", string(result.Classification)),
	)

	return result
}

// classify maps a final score to its classification band.
func (s *Stage2Scorer) classify(score int) domain.Classification {
	switch {
	case score >= s.config.HighlyProfitableMin:
		return domain.ClassHighlyProfitable
	case score >= s.config.ProfitableMin:
		return domain.ClassProfitable
	case score >= s.config.MarginalMin:
		return domain.ClassMarginal
	default:
		return domain.ClassNotProfitable
	}
}
