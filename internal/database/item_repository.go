package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/profitscan/profitscan/internal/domain"
)

// ItemRepository handles bulk persistence of finalized analysis items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// itemRow is the flat insert shape for one analysis item.
type itemRow struct {
	JobID           string                `db:"job_id"`
	ChunkID         int                   `db:"chunk_id"`
	Position        int                   `db:"position"`
	Identifier      string                `db:"identifier"`
	Kind            domain.IdentifierKind `db:"kind"`
	CatalogCode     string                `db:"catalog_code"`
	AcquisitionCost float64               `db:"acquisition_cost"`
	Stage1Score     *int                  `db:"stage1_score"`
	PassedStage1    bool                  `db:"passed_stage1"`
	FinalScore      *int                  `db:"final_score"`
	Classification  domain.Classification `db:"classification"`
	ErrorReason     string                `db:"error_reason"`
}

// AppendChunk bulk-inserts a completed chunk's items in one statement,
// preserving within-chunk submission order via the position column.
func (r *ItemRepository) AppendChunk(ctx context.Context, chunk *domain.Chunk) error {
	if len(chunk.Items) == 0 {
		return nil
	}

	rows := make([]itemRow, 0, len(chunk.Items))
	for i, item := range chunk.Items {
		rows = append(rows, itemRow{
			JobID:           chunk.JobID,
			ChunkID:         chunk.ID,
			Position:        chunk.Start + i,
			Identifier:      item.Identifier,
			Kind:            item.Kind,
			CatalogCode:     item.CatalogCode,
			AcquisitionCost: item.AcquisitionCost,
			Stage1Score:     item.Stage1Score,
			PassedStage1:    item.PassedStage1,
			FinalScore:      item.FinalScore,
			Classification:  item.Classification,
			ErrorReason:     item.ErrorReason,
		})
	}

	query := `
		INSERT INTO analysis_items (
			job_id, chunk_id, position, identifier, kind, catalog_code,
			acquisition_cost, stage1_score, passed_stage1, final_score,
			classification, error_reason
		)
		VALUES (
			:job_id, :chunk_id, :position, :identifier, :kind, :catalog_code,
			:acquisition_cost, :stage1_score, :passed_stage1, :final_score,
			:classification, :error_reason
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("failed to append chunk items: %w", err)
	}

	return nil
}

// ListByJob returns all finalized items for a job in submission order.
func (r *ItemRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.AnalysisItem, error) {
	query := `
		SELECT identifier, kind, catalog_code, acquisition_cost,
		       stage1_score, passed_stage1, final_score,
		       classification, error_reason
		FROM analysis_items
		WHERE job_id = $1
		ORDER BY position
	`

	var items []*domain.AnalysisItem
	if err := r.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}

	return items, nil
}

// ClassificationCounts returns the per-classification item counts for a job.
func (r *ItemRepository) ClassificationCounts(ctx context.Context, jobID string) (map[domain.Classification]int, error) {
	query := `
		SELECT classification, COUNT(*) AS count
		FROM analysis_items
		WHERE job_id = $1
		GROUP BY classification
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count classifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Classification]int)
	for rows.Next() {
		var class domain.Classification
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("failed to scan classification count: %w", err)
		}
		counts[class] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classification counts: %w", err)
	}

	return counts, nil
}
