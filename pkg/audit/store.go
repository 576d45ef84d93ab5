package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// MaxPageSize caps how many feed records one page may carry
const MaxPageSize = 100

// DefaultPageSize is used when a caller does not specify one
const DefaultPageSize = 25

// Store reads the activity trail
type Store struct {
	db *sql.DB
}

// NewStore creates a new activity trail reader
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `
	id, actor_user_id, action, entity_type, entity_id,
	description, permit_id, metadata, created_at`

// Feed returns one page of a permit's activity, newest first. Ties on
// created_at are broken by id descending so concurrent writes keep a
// deterministic order.
func (s *Store) Feed(ctx context.Context, permitID int64, page, pageSize int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	offset := (page - 1) * pageSize

	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_records WHERE permit_id = $1", permitID,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM activity_records
		WHERE permit_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, recordColumns)

	rows, err := s.db.QueryContext(ctx, query, permitID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity feed: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	return &FeedPage{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Search returns trail records matching the filter, newest first
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]*ActivityRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM activity_records WHERE 1=1", recordColumns)

	args := []interface{}{}
	argCount := 1

	if filter.ActorUserID != nil {
		query += fmt.Sprintf(" AND actor_user_id = $%d", argCount)
		args = append(args, *filter.ActorUserID)
		argCount++
	}

	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argCount)
		actionStrs := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actionStrs[i] = string(a)
		}
		args = append(args, pq.Array(actionStrs))
		argCount++
	}

	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", argCount)
		args = append(args, string(filter.EntityType))
		argCount++
	}

	if filter.PermitID != nil {
		query += fmt.Sprintf(" AND permit_id = $%d", argCount)
		args = append(args, *filter.PermitID)
		argCount++
	}

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	query += fmt.Sprintf(" LIMIT $%d", argCount)
	args = append(args, limit)
	argCount++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search activity records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*ActivityRecord, error) {
	records := make([]*ActivityRecord, 0)
	for rows.Next() {
		record := &ActivityRecord{}
		var metadataJSON []byte

		err := rows.Scan(
			&record.ID, &record.ActorUserID, &record.Action,
			&record.EntityType, &record.EntityID, &record.Description,
			&record.PermitID, &metadataJSON, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity records: %w", err)
	}

	return records, nil
}
