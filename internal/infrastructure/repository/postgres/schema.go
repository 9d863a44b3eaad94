package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaLockID int64 = 2026101801

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE TABLE IF NOT EXISTS project_members (
	tenant_id TEXT NOT NULL,
	project_id TEXT NOT NULL REFERENCES projects(id),
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (tenant_id, project_id, user_id)
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	extracted_text TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	uploaded_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(tenant_id, project_id) WHERE is_deleted = FALSE;

CREATE TABLE IF NOT EXISTS frameworks (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS controls (
	id TEXT PRIMARY KEY,
	framework_id TEXT NOT NULL REFERENCES frameworks(id),
	code TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	guidance TEXT NOT NULL DEFAULT '',
	is_mandatory BOOLEAN NOT NULL DEFAULT TRUE,
	default_risk_level TEXT NOT NULL DEFAULT 'Medium',
	UNIQUE (framework_id, code)
);

CREATE TABLE IF NOT EXISTS project_frameworks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	framework_id TEXT NOT NULL REFERENCES frameworks(id),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	compliant_count INTEGER NOT NULL DEFAULT 0,
	partially_compliant_count INTEGER NOT NULL DEFAULT 0,
	non_compliant_count INTEGER NOT NULL DEFAULT 0,
	not_assessed_count INTEGER NOT NULL DEFAULT 0,
	compliance_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_analyzed_by TEXT,
	last_analyzed_at TIMESTAMPTZ,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_project_frameworks_assignment
	ON project_frameworks(tenant_id, project_id, framework_id) WHERE is_deleted = FALSE;

CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	framework_id TEXT NOT NULL,
	control_id TEXT NOT NULL,
	code TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	workflow_status TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	remediation_guidance TEXT NOT NULL DEFAULT '',
	estimated_effort_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
	analysis_version TEXT NOT NULL DEFAULT '',
	analysis_model TEXT NOT NULL DEFAULT '',
	last_analyzed_at TIMESTAMPTZ,
	raw_result JSONB,
	assigned_to TEXT,
	due_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_findings_project ON findings(tenant_id, project_id, created_at DESC);

CREATE TABLE IF NOT EXISTS finding_evidence (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	finding_id TEXT NOT NULL REFERENCES findings(id),
	document_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	excerpt TEXT NOT NULL,
	page_reference TEXT NOT NULL DEFAULT '',
	section_reference TEXT NOT NULL DEFAULT '',
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	evidence_type TEXT NOT NULL,
	is_manual BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_finding_evidence_finding ON finding_evidence(tenant_id, finding_id);

CREATE TABLE IF NOT EXISTS check_runs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	framework_id TEXT NOT NULL,
	state TEXT NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	compliant_count INTEGER NOT NULL DEFAULT 0,
	partially_compliant_count INTEGER NOT NULL DEFAULT 0,
	non_compliant_count INTEGER NOT NULL DEFAULT 0,
	not_assessed_count INTEGER NOT NULL DEFAULT 0,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	findings_created INTEGER NOT NULL DEFAULT 0,
	analysis_model TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	triggered_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_check_runs_completed
	ON check_runs(tenant_id, project_id, completed_at DESC) WHERE state = 'Completed';

CREATE TABLE IF NOT EXISTS activity_logs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	project_id TEXT,
	actor_id TEXT,
	actor_name TEXT NOT NULL,
	actor_email TEXT NOT NULL DEFAULT '',
	activity_type TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	entity_name TEXT NOT NULL DEFAULT '',
	metadata JSONB,
	description TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_tenant_created ON activity_logs(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_logs_project ON activity_logs(tenant_id, project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_logs_entity ON activity_logs(tenant_id, entity_type, entity_id);
`

// EnsureSchema creates every table the auditor needs. Safe to call from both
// the api and the worker on startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
