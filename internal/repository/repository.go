// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	if cfg.Driver == "bolt" {
		return NewBoltRepository(cfg.BoltPath)
	}

	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const claimColumns = `
	id, employee_name, submitted_date, receipt_image, vendor, receipt_date, total,
	receipt_data, status, fraud_indicators, authenticity_score, fraud_risk_level,
	duplicate_check, feedback, flagged_by, flagged_at, investigation_notes,
	created_at, updated_at`

// Create stores a new claim. The ID is assigned when empty.
func (r *SQLRepository) Create(ctx context.Context, claim *domain.Claim) (string, error) {
	if claim == nil || claim.EmployeeName == "" {
		return "", fmt.Errorf("%w: claim with employee name is required", ErrInvalidInput)
	}

	prepareForCreate(claim)

	receiptData, err := json.Marshal(claim.ReceiptData)
	if err != nil {
		return "", fmt.Errorf("failed to encode receipt data: %w", err)
	}
	indicators, err := json.Marshal(claim.FraudIndicators)
	if err != nil {
		return "", fmt.Errorf("failed to encode fraud indicators: %w", err)
	}
	duplicateCheck, err := json.Marshal(claim.DuplicateCheck)
	if err != nil {
		return "", fmt.Errorf("failed to encode duplicate check: %w", err)
	}
	notes, err := json.Marshal(claim.InvestigationNotes)
	if err != nil {
		return "", fmt.Errorf("failed to encode investigation notes: %w", err)
	}

	query := `INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.EmployeeName, claim.SubmittedDate.String(), claim.ReceiptImage,
		claim.ReceiptData.Vendor, claim.ReceiptData.Date.String(), claim.ReceiptData.Total,
		string(receiptData), string(claim.Status), string(indicators),
		claim.AuthenticityScore, string(claim.FraudRiskLevel), string(duplicateCheck),
		claim.Feedback, claim.FlaggedBy, nullTime(claim.FlaggedAt), string(notes),
		claim.CreatedAt, claim.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert claim: %w", err)
	}

	return claim.ID, nil
}

// GetByID retrieves a claim by ID.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// FindByClaimantVendorAmount returns the ID and receipt date of every claim
// with exactly this claimant, vendor and total.
func (r *SQLRepository) FindByClaimantVendorAmount(ctx context.Context, claimantID, vendor string, total float64) ([]domain.ClaimRef, error) {
	query := `
		SELECT id, receipt_date
		FROM claims
		WHERE employee_name = ? AND vendor = ? AND total = ?
		ORDER BY receipt_date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimantID, vendor, total)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]domain.ClaimRef, 0)
	for rows.Next() {
		var id, date string
		if err := rows.Scan(&id, &date); err != nil {
			return nil, err
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", id, err)
		}
		refs = append(refs, domain.ClaimRef{ID: id, Date: d})
	}

	return refs, rows.Err()
}

// claimWhere renders the equality fields of filter as a WHERE clause.
func claimWhere(filter domain.ClaimFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeName != "" {
		where = append(where, "employee_name = ?")
		args = append(args, filter.EmployeeName)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RiskLevel != "" {
		where = append(where, "fraud_risk_level = ?")
		args = append(args, string(filter.RiskLevel))
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns claims matching the filter, newest submission first.
func (r *SQLRepository) List(ctx context.Context, filter domain.ClaimFilter) ([]*domain.Claim, error) {
	where, args := claimWhere(filter)

	var b strings.Builder
	b.WriteString(`SELECT ` + claimColumns + ` FROM claims` + where)
	b.WriteString(" ORDER BY submitted_date DESC, created_at DESC")
	args = append(args, r.paginate(&b, filter.Limit, filter.Offset)...)

	rows, err := r.db.QueryContext(ctx, r.rebind(b.String()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := make([]*domain.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// Stats aggregates the matching claims. Totals and the status and risk
// breakdowns are grouped in SQL; indicator types are tallied from the JSON
// column, which the two dialects cannot unnest the same way.
func (r *SQLRepository) Stats(ctx context.Context, filter domain.ClaimFilter) (*domain.ClaimStats, error) {
	where, args := claimWhere(filter)
	stats := domain.NewClaimStats()

	var (
		count           int
		amount, scoreSum float64
	)
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(authenticity_score), 0)
		FROM claims`+where), args...).Scan(&count, &amount, &scoreSum)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate claims: %w", err)
	}
	stats.AddTotals(count, amount, scoreSum)

	err = r.groupCount(ctx, "status", where, args, func(key string, n int) {
		stats.ByStatus[domain.Status(key)] += n
	})
	if err != nil {
		return nil, err
	}
	err = r.groupCount(ctx, "fraud_risk_level", where, args, func(key string, n int) {
		if key != "" {
			stats.ByRiskLevel[domain.RiskLevel(key)] += n
		}
	})
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, fraud_indicators FROM claims`+where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read fraud indicators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var indicators []domain.FraudIndicator
		if err := json.Unmarshal([]byte(raw), &indicators); err != nil {
			return nil, fmt.Errorf("failed to parse fraud indicators for %s: %w", id, err)
		}
		for _, ind := range indicators {
			stats.ByIndicatorType[ind.Type]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.Finalize()
	return stats, nil
}

// groupCount runs COUNT(*) grouped by column and reports each group.
func (r *SQLRepository) groupCount(ctx context.Context, column, where string, args []any, fn func(key string, n int)) error {
	query := `SELECT ` + column + `, COUNT(*) FROM claims` + where + ` GROUP BY ` + column

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to count claims by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

// paginate appends LIMIT/OFFSET clauses and returns their arguments.
// SQLite needs a LIMIT before OFFSET; -1 means no limit there.
func (r *SQLRepository) paginate(b *strings.Builder, limit, offset int) []any {
	var args []any
	switch {
	case limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	case offset > 0 && r.driver != "postgres":
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, offset)
	}
	return args
}

// UpdateStatus applies a review inside a transaction. The UPDATE is guarded
// on the status read at the start, so a concurrent reviewer makes it affect
// zero rows and ErrConflict is returned.
func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, expected *domain.Status, update domain.StatusUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `SELECT status, feedback, flagged_by, flagged_at, investigation_notes FROM claims WHERE id = ?`
	if r.driver == "postgres" {
		query += " FOR UPDATE"
	}

	var (
		current             domain.Claim
		status, notes       string
		feedback, flaggedBy sql.NullString
		flaggedAt           sql.NullTime
	)
	err = tx.QueryRowContext(ctx, r.rebind(query), id).Scan(&status, &feedback, &flaggedBy, &flaggedAt, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	current.Status = domain.Status(status)
	if expected != nil && current.Status != *expected {
		return domain.ErrConflict
	}
	current.Feedback = feedback.String
	current.FlaggedBy = flaggedBy.String
	if flaggedAt.Valid {
		t := flaggedAt.Time.UTC()
		current.FlaggedAt = &t
	}
	if notes != "" {
		if err := json.Unmarshal([]byte(notes), &current.InvestigationNotes); err != nil {
			return fmt.Errorf("failed to parse investigation notes: %w", err)
		}
	}

	update.Apply(&current)
	newNotes, err := json.Marshal(current.InvestigationNotes)
	if err != nil {
		return fmt.Errorf("failed to encode investigation notes: %w", err)
	}

	result, err := tx.ExecContext(ctx, r.rebind(`
		UPDATE claims
		SET status = ?, feedback = ?, flagged_by = ?, flagged_at = ?,
			investigation_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`),
		string(current.Status), current.Feedback, current.FlaggedBy, nullTime(current.FlaggedAt),
		string(newNotes), current.UpdatedAt,
		id, status,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConflict
	}

	return tx.Commit()
}

// SaveRuleConfig creates or replaces a rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, expression, indicator_type, severity, confidence, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			indicator_type = excluded.indicator_type,
			severity = excluded.severity,
			confidence = excluded.confidence,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		string(rule.IndicatorType), string(rule.Severity), rule.Confidence, enabled,
		now, now,
	)
	return err
}

const ruleColumns = `id, name, description, expression, indicator_type, severity, confidence, enabled, created_at, updated_at`

// GetRuleConfig retrieves a rule configuration.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `SELECT ` + ruleColumns + ` FROM rule_configs WHERE id = ?`

	cfg, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuleConfigs retrieves every stored rule configuration, enabled or not.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `SELECT ` + ruleColumns + ` FROM rule_configs ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]*domain.RuleConfig, 0)
	for rows.Next() {
		cfg, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// DeleteRuleConfig removes a rule configuration.
func (r *SQLRepository) DeleteRuleConfig(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM rule_configs WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var (
		c                                 domain.Claim
		submitted, vendor, receiptDate    string
		total                             float64
		receiptData, status, indicators   string
		riskLevel, duplicateCheck         string
		image, feedback, flaggedBy, notes sql.NullString
		flaggedAt                         sql.NullTime
	)

	if err := row.Scan(
		&c.ID, &c.EmployeeName, &submitted, &image, &vendor, &receiptDate, &total,
		&receiptData, &status, &indicators, &c.AuthenticityScore, &riskLevel,
		&duplicateCheck, &feedback, &flaggedBy, &flaggedAt, &notes,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if c.SubmittedDate, err = domain.ParseDate(submitted); err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(receiptData), &c.ReceiptData); err != nil {
		return nil, fmt.Errorf("failed to parse receipt data for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(indicators), &c.FraudIndicators); err != nil {
		return nil, fmt.Errorf("failed to parse fraud indicators for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(duplicateCheck), &c.DuplicateCheck); err != nil {
		return nil, fmt.Errorf("failed to parse duplicate check for %s: %w", c.ID, err)
	}
	if notes.String != "" {
		if err := json.Unmarshal([]byte(notes.String), &c.InvestigationNotes); err != nil {
			return nil, fmt.Errorf("failed to parse investigation notes for %s: %w", c.ID, err)
		}
	}

	c.ReceiptImage = image.String
	c.Status = domain.Status(status)
	c.FraudRiskLevel = domain.RiskLevel(riskLevel)
	c.Feedback = feedback.String
	c.FlaggedBy = flaggedBy.String
	if flaggedAt.Valid {
		t := flaggedAt.Time.UTC()
		c.FlaggedAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	normalize(&c)
	return &c, nil
}

func scanRule(row rowScanner) (*domain.RuleConfig, error) {
	var (
		cfg                     domain.RuleConfig
		description             sql.NullString
		indicatorType, severity string
		enabled                 int
	)

	if err := row.Scan(
		&cfg.ID, &cfg.Name, &description, &cfg.Expression,
		&indicatorType, &severity, &cfg.Confidence, &enabled,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.IndicatorType = domain.IndicatorType(indicatorType)
	cfg.Severity = domain.Severity(severity)
	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// prepareForCreate assigns the ID and timestamps shared by every driver.
func prepareForCreate(claim *domain.Claim) {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	if claim.UpdatedAt.IsZero() {
		claim.UpdatedAt = claim.CreatedAt
	}
	normalize(claim)
}

// normalize replaces nil slices so stored and returned claims encode as [].
func normalize(c *domain.Claim) {
	if c.FraudIndicators == nil {
		c.FraudIndicators = []domain.FraudIndicator{}
	}
	if c.DuplicateCheck.SimilarClaims == nil {
		c.DuplicateCheck.SimilarClaims = []domain.SimilarClaim{}
	}
	if c.ReceiptData.Items == nil {
		c.ReceiptData.Items = []domain.LineItem{}
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
