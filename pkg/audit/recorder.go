package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/permitdesk/permitdesk/pkg/observability"
)

// Recorder appends activity records to the trail
type Recorder struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a new activity recorder
func NewRecorder(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Recorder{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Record appends one activity record as a single atomic insert and returns
// it with the assigned id and timestamp.
func (r *Recorder) Record(ctx context.Context, entry Entry) (*ActivityRecord, error) {
	var metadataJSON []byte
	var err error

	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO activity_records (
			actor_user_id, action, entity_type, entity_id,
			description, permit_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	record := &ActivityRecord{
		ActorUserID: entry.ActorUserID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Description: entry.Description,
		PermitID:    entry.PermitID,
		Metadata:    entry.Metadata,
	}

	err = r.db.QueryRowContext(ctx, query,
		entry.ActorUserID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Description, entry.PermitID, metadataJSON,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity record: %w", err)
	}

	if r.metrics != nil {
		r.metrics.AuditRecordsTotal.WithLabelValues(string(entry.Action)).Inc()
	}

	return record, nil
}

// RecordBestEffort appends an activity record after a mutation has already
// committed. A write failure never propagates; it is compliance-relevant,
// so it is logged loudly and counted, but the mutation's success response
// stands.
func (r *Recorder) RecordBestEffort(ctx context.Context, entry Entry) *ActivityRecord {
	record, err := r.Record(ctx, entry)
	if err != nil {
		r.logger.WithError(err).
			WithField("action", string(entry.Action)).
			WithField("actor_user_id", entry.ActorUserID).
			WithField("entity_type", string(entry.EntityType)).
			WithField("entity_id", entry.EntityID).
			Error("Audit write failed, activity trail has a gap")
		if r.metrics != nil {
			r.metrics.AuditWriteFailuresTotal.Inc()
		}
		return nil
	}
	return record
}
