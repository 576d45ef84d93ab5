package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all platform migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permits table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permits (
					id BIGSERIAL PRIMARY KEY,
					creator_id BIGINT NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'draft',
					subcode_type VARCHAR(50) NOT NULL,
					property_id BIGINT NOT NULL,
					address TEXT,
					description TEXT,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_permits_creator_id ON permits(creator_id);
				CREATE INDEX IF NOT EXISTS idx_permits_property_id ON permits(property_id);
				CREATE INDEX IF NOT EXISTS idx_permits_status ON permits(status);
			`,
		},
		{
			Version:     2,
			Description: "Create permit_parties table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permit_parties (
					id BIGSERIAL PRIMARY KEY,
					permit_id BIGINT NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					role VARCHAR(50) NOT NULL,
					invited_by BIGINT,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(permit_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_permit_parties_user_id ON permit_parties(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create activity_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_records (
					id BIGSERIAL PRIMARY KEY,
					actor_user_id BIGINT NOT NULL,
					action VARCHAR(100) NOT NULL,
					entity_type VARCHAR(50) NOT NULL,
					entity_id BIGINT NOT NULL,
					description TEXT,
					permit_id BIGINT,
					metadata JSONB,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_activity_records_permit_id ON activity_records(permit_id, created_at DESC, id DESC);
				CREATE INDEX IF NOT EXISTS idx_activity_records_actor ON activity_records(actor_user_id);
				CREATE INDEX IF NOT EXISTS idx_activity_records_action ON activity_records(action);
			`,
		},
		{
			Version:     4,
			Description: "Create workflow_templates table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflow_templates (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					permit_type VARCHAR(50),
					is_default BOOLEAN NOT NULL DEFAULT FALSE,
					steps JSONB NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_workflow_templates_default
					ON workflow_templates(COALESCE(permit_type, '')) WHERE is_default;
				CREATE INDEX IF NOT EXISTS idx_workflow_templates_permit_type ON workflow_templates(permit_type);
			`,
		},
		{
			Version:     5,
			Description: "Create milestones table",
			SQL: `
				CREATE TABLE IF NOT EXISTS milestones (
					id BIGSERIAL PRIMARY KEY,
					permit_id BIGINT NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					due_date TIMESTAMP WITH TIME ZONE,
					sort_order INTEGER NOT NULL,
					completed_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_milestones_permit_id ON milestones(permit_id, sort_order, id);
				CREATE INDEX IF NOT EXISTS idx_milestones_due_date ON milestones(due_date) WHERE completed_at IS NULL;
			`,
		},
		{
			Version:     6,
			Description: "Create documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS documents (
					id BIGSERIAL PRIMARY KEY,
					permit_id BIGINT NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
					uploader_id BIGINT NOT NULL,
					file_name VARCHAR(512) NOT NULL,
					content_type VARCHAR(255),
					size_bytes BIGINT NOT NULL DEFAULT 0,
					blob_key VARCHAR(512) NOT NULL,
					is_photo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_documents_permit_id ON documents(permit_id);
			`,
		},
		{
			Version:     7,
			Description: "Create messages table",
			SQL: `
				CREATE TABLE IF NOT EXISTS messages (
					id BIGSERIAL PRIMARY KEY,
					permit_id BIGINT NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
					sender_id BIGINT NOT NULL,
					body TEXT NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_messages_permit_id ON messages(permit_id, created_at DESC);
			`,
		},
		{
			Version:     8,
			Description: "Create inspections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS inspections (
					id BIGSERIAL PRIMARY KEY,
					permit_id BIGINT NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
					inspector_user_id BIGINT,
					scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
					result VARCHAR(50),
					notes TEXT,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_inspections_permit_id ON inspections(permit_id, scheduled_for);
			`,
		},
	}
}

// RunMigrations applies all migrations in order, tracking applied versions
// in a schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			migration.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
