package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS approval_rules (
				id UUID PRIMARY KEY,
				document_type VARCHAR(100) NOT NULL,
				min_amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
				max_amount NUMERIC(14, 2),
				approver_role VARCHAR(100) NOT NULL,
				sla_hours INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_approval_rules_document_type
				ON approval_rules (document_type);

			CREATE TABLE IF NOT EXISTS approvers (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				role VARCHAR(100) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS approval_groups (
				id UUID PRIMARY KEY,
				document_type VARCHAR(100) NOT NULL,
				document_id VARCHAR(64) NOT NULL,
				approval_level INTEGER NOT NULL DEFAULT 1,
				mode VARCHAR(10) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'pending',
				approver_ids JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_approval_groups_status
				ON approval_groups (status);
			CREATE INDEX IF NOT EXISTS idx_approval_groups_document
				ON approval_groups (document_type, document_id);

			CREATE TABLE IF NOT EXISTS approval_responses (
				id UUID PRIMARY KEY,
				group_id UUID NOT NULL REFERENCES approval_groups (id),
				approver_id VARCHAR(64) NOT NULL,
				decision VARCHAR(10) NOT NULL,
				comments TEXT,
				decided_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (group_id, approver_id)
			);

			CREATE INDEX IF NOT EXISTS idx_approval_responses_group
				ON approval_responses (group_id);
		`,
	}
}
