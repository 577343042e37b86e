package domain

// IdentifierKind declares what kind of identifier a submitted code is.
// Catalog codes skip the resolution step entirely.
type IdentifierKind string

// Identifier kind constants.
const (
	// KindUPC is a universal product code that must be resolved to a
	// catalog code before any pricing lookup is possible.
	KindUPC IdentifierKind = "upc"
	// KindCatalog is the marketplace's canonical item identifier.
	KindCatalog IdentifierKind = "catalog"
)

// Classification is the terminal outcome for one analyzed item.
type Classification string

// Classification constants.
const (
	ClassHighlyProfitable Classification = "highly_profitable"
	ClassProfitable       Classification = "profitable"
	ClassMarginal         Classification = "marginal"
	ClassNotProfitable    Classification = "not_profitable"
	ClassUnresolved       Classification = "unresolved"
	ClassError            Classification = "error"
	// ClassSkipped marks items never processed because their job was
	// cancelled before the owning chunk reached them.
	ClassSkipped Classification = "skipped"
)

// AnalysisItem is one identifier being analyzed within a job. It is owned
// exclusively by the chunk processing it until the chunk completes.
//
// Invariants: FinalScore is set only when PassedStage1 is true;
// Classification is ClassUnresolved iff CatalogCode is empty after
// resolution; Classification is ClassError iff ErrorReason is set.
type AnalysisItem struct {
	Identifier      string         `db:"identifier"       json:"identifier"`
	Kind            IdentifierKind `db:"kind"             json:"kind"`
	CatalogCode     string         `db:"catalog_code"     json:"catalog_code,omitempty"`
	AcquisitionCost float64        `db:"acquisition_cost" json:"acquisition_cost"`
	Stage1Score     *int           `db:"stage1_score"     json:"stage1_score,omitempty"`
	PassedStage1    bool           `db:"passed_stage1"    json:"passed_stage1"`
	FinalScore      *int           `db:"final_score"      json:"final_score,omitempty"`
	Classification  Classification `db:"classification"   json:"classification"`
	ErrorReason     string         `db:"error_reason"     json:"error_reason,omitempty"`
}

// MarkError sets the terminal error classification with the given reason.
func (a *AnalysisItem) MarkError(reason string) {
	a.Classification = ClassError
	a.ErrorReason = reason
}
