package repository

// Schema definitions for the claimguard database.
// Compatible with both SQLite and PostgreSQL.

// Calendar dates are stored as YYYY-MM-DD text so they sort and compare
// without timezone conversion. Structured fields are JSON text.
const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    employee_name TEXT NOT NULL,
    submitted_date TEXT NOT NULL,
    receipt_image TEXT,
    vendor TEXT NOT NULL,
    receipt_date TEXT NOT NULL,
    total DOUBLE PRECISION NOT NULL,
    receipt_data TEXT NOT NULL,
    status TEXT NOT NULL,
    fraud_indicators TEXT NOT NULL,
    authenticity_score DOUBLE PRECISION NOT NULL,
    fraud_risk_level TEXT NOT NULL,
    duplicate_check TEXT NOT NULL,
    feedback TEXT,
    flagged_by TEXT,
    flagged_at TIMESTAMP NULL,
    investigation_notes TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_duplicate ON claims(employee_name, vendor, total);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_submitted ON claims(submitted_date, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    indicator_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaRuleConfigs,
	}
}
