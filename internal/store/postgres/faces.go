package postgres

import (
	"context"
	"fmt"

	"github.com/eventlens/eventlens/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceRecordRepository provides PostgreSQL-backed face record storage.
type FaceRecordRepository struct {
	pool *Pool
}

// NewFaceRecordRepository creates a new face record repository.
func NewFaceRecordRepository(pool *Pool) *FaceRecordRepository {
	return &FaceRecordRepository{pool: pool}
}

// InsertFaces stores a batch of records in one multi-row insert. Records are
// insert-only; the unique slot_id constraint guards against double writes of
// the same index slot.
func (r *FaceRecordRepository) InsertFaces(ctx context.Context, records []store.FaceRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO face_records
			(event_id, photographer, photographer_norm, source_path, task_id, bbox, confidence, slot_id, embedding)
		VALUES
	`
	args := make([]any, 0, len(records)*9)
	for i, rec := range records {
		if i > 0 {
			query += ","
		}
		base := i * 9
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)

		args = append(args,
			rec.EventID,
			rec.Photographer,
			store.NormalizePhotographer(rec.Photographer),
			rec.SourcePath,
			rec.TaskID,
			pq.Array(rec.BBox),
			rec.Confidence,
			rec.SlotID,
			pgvector.NewVector(rec.Embedding),
		)
	}

	if err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d face records: %w", len(records), err)
	}
	return nil
}

// FindBySlots returns the records whose slot id is in slots, restricted to
// the given event.
func (r *FaceRecordRepository) FindBySlots(ctx context.Context, eventID string, slots []int64) ([]store.FaceRecord, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, event_id, photographer, source_path, task_id, bbox, confidence, slot_id, embedding, created_at
		FROM face_records
		WHERE event_id = $1 AND slot_id = ANY($2)
		ORDER BY slot_id
	`
	rows, err := r.pool.Query(ctx, query, eventID, pq.Array(slots))
	if err != nil {
		return nil, fmt.Errorf("querying face records by slots: %w", err)
	}
	defer rows.Close()

	var records []store.FaceRecord
	for rows.Next() {
		var rec store.FaceRecord
		var bbox pq.Float64Array
		var embedding pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Photographer, &rec.SourcePath, &rec.TaskID,
			&bbox, &rec.Confidence, &rec.SlotID, &embedding, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning face record: %w", err)
		}
		rec.BBox = bbox
		rec.Embedding = embedding.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating face records: %w", err)
	}
	return records, nil
}

// CountFaces returns the total number of stored records. Used for the
// integrity cross-check against the vector index.
func (r *FaceRecordRepository) CountFaces(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting face records: %w", err)
	}
	return count, nil
}

// CountFacesByEvent returns the number of stored records for one event.
func (r *FaceRecordRepository) CountFacesByEvent(ctx context.Context, eventID string) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_records WHERE event_id = $1", eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting face records for event: %w", err)
	}
	return count, nil
}
