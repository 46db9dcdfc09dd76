package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type InsertMergeRecordParams struct {
	PrimaryPropertyID uuid.UUID
	MergedPropertyID  uuid.UUID
	MergedBy          *uuid.UUID
	Reason            *string
	MergedSnapshot    []byte
}

func (s *Store) InsertMergeRecord(ctx context.Context, params InsertMergeRecordParams) (MergeRecord, error) {
	var rec MergeRecord
	err := s.db.QueryRow(ctx, `
		INSERT INTO merge_history (primary_property_id, merged_property_id, merged_by, reason, merged_snapshot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, primary_property_id, merged_property_id, merged_by, reason, merged_snapshot, created_at`,
		params.PrimaryPropertyID, params.MergedPropertyID, params.MergedBy, params.Reason, params.MergedSnapshot).
		Scan(&rec.ID, &rec.PrimaryPropertyID, &rec.MergedPropertyID, &rec.MergedBy, &rec.Reason, &rec.MergedSnapshot, &rec.CreatedAt)
	if err != nil {
		return MergeRecord{}, fmt.Errorf("insert merge record: %w", err)
	}
	return rec, nil
}

func (s *Store) ListMergeHistoryByProperty(ctx context.Context, propertyID uuid.UUID) ([]MergeRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, primary_property_id, merged_property_id, merged_by, reason, merged_snapshot, created_at
		FROM merge_history
		WHERE primary_property_id = $1
		ORDER BY created_at DESC`,
		propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]MergeRecord, 0, 4)
	for rows.Next() {
		var rec MergeRecord
		if err := rows.Scan(&rec.ID, &rec.PrimaryPropertyID, &rec.MergedPropertyID, &rec.MergedBy, &rec.Reason, &rec.MergedSnapshot, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.RequestID, metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
