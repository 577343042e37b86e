package domain

// PricingSignals holds the cheap per-item signals returned by the pricing
// provider: current price, fee estimate, and competition.
type PricingSignals struct {
	CatalogCode string  `json:"catalog_code"`
	SellPrice   float64 `json:"sell_price"`
	// EstimatedFees is the total estimated marketplace fees for one unit
	// sold at SellPrice.
	EstimatedFees float64 `json:"estimated_fees"`
	SellerCount   int     `json:"seller_count"`
	// MarketplaceIsSeller is true when the marketplace operator itself
	// competes on the listing.
	MarketplaceIsSeller bool `json:"marketplace_is_seller"`
	// MarketplaceQuantity is the operator's offered quantity; zero means it
	// is listed but out of stock.
	MarketplaceQuantity int `json:"marketplace_quantity"`
}

// HistorySignals holds the expensive rank/demand signals returned by the
// history provider, fetched only for Stage-1 survivors.
type HistorySignals struct {
	CatalogCode string `json:"catalog_code"`
	// SalesRank is the item's popularity rank; lower is better.
	SalesRank int `json:"sales_rank"`
	// RankPercentile is the rank as a percentage of its category size;
	// smaller is better.
	RankPercentile float64 `json:"rank_percentile"`
	// MonthlyVelocity is the estimated units sold per month.
	MonthlyVelocity float64 `json:"monthly_velocity"`
	// Hazmat marks a restricted-handling classification.
	Hazmat bool `json:"hazmat"`
	// ManufacturerIsSeller is true when the manufacturer competes on the
	// listing.
	ManufacturerIsSeller bool `json:"manufacturer_is_seller"`
}
