package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// SQLStore implements Store on database/sql. Schema is created on open.
// Status transitions use affected-row counts as the compare-and-swap.
type SQLStore struct {
	db *sql.DB
}

const proposalSchema = `
CREATE TABLE IF NOT EXISTS proposals (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	session_id   TEXT NOT NULL DEFAULT '',
	tool_name    TEXT NOT NULL,
	payload      BLOB,
	status       TEXT NOT NULL,
	result       BLOB,
	created_at   TIMESTAMP NOT NULL,
	confirmed_at TIMESTAMP,
	executed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_proposals_tenant ON proposals(tenant_id);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status, created_at);
`

// NewSQLStore wraps an open database handle and ensures the schema exists.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if _, err := db.Exec(proposalSchema); err != nil {
		return nil, fmt.Errorf("create proposals schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Create(ctx context.Context, p *models.Proposal) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("proposal with id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, tenant_id, session_id, tool_name, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.SessionID, p.ToolName, []byte(p.Payload), string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, tenantID, id string) (*models.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, session_id, tool_name, payload, status, result, created_at, confirmed_at, executed_at
		FROM proposals WHERE id = ?`, id)

	var p models.Proposal
	var payload, result []byte
	var status string
	var confirmedAt, executedAt sql.NullTime
	err := row.Scan(&p.ID, &p.TenantID, &p.SessionID, &p.ToolName, &payload, &status, &result,
		&p.CreatedAt, &confirmedAt, &executedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if tenantID != "" && p.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	p.Payload = json.RawMessage(payload)
	p.Result = json.RawMessage(result)
	p.Status = models.ProposalStatus(status)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	if executedAt.Valid {
		t := executedAt.Time
		p.ExecutedAt = &t
	}
	return &p, nil
}

func (s *SQLStore) CASStatus(ctx context.Context, tenantID, id string, from, to models.ProposalStatus) (bool, error) {
	column := ""
	switch to {
	case models.ProposalConfirmed:
		column = "confirmed_at"
	case models.ProposalExecuted:
		column = "executed_at"
	}

	query := `UPDATE proposals SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`
	args := []any{string(to), id, tenantID, string(from)}
	if column != "" {
		query = fmt.Sprintf(`UPDATE proposals SET status = ?, %s = ? WHERE id = ? AND tenant_id = ? AND status = ?`, column)
		args = []any{string(to), time.Now().UTC(), id, tenantID, string(from)}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("cas proposal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Distinguish "lost the race" from "does not exist".
		if _, err := s.Get(ctx, tenantID, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLStore) MarkExecuted(ctx context.Context, tenantID, id string, result json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE proposals SET status = ?, result = ?, executed_at = ?
		WHERE id = ? AND tenant_id = ? AND status != ?`,
		string(models.ProposalExecuted), []byte(result), time.Now().UTC(),
		id, tenantID, string(models.ProposalExecuted),
	)
	if err != nil {
		return fmt.Errorf("mark proposal executed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already executed, or missing entirely.
		if _, err := s.Get(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Prune(ctx context.Context, now time.Time, pendingTTL, retention time.Duration) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	discarded, removed := int64(0), int64(0)
	if pendingTTL > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE proposals SET status = ? WHERE status = ? AND created_at < ?`,
			string(models.ProposalDiscarded), string(models.ProposalPending), now.Add(-pendingTTL),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("discard stale proposals: %w", err)
		}
		discarded, _ = res.RowsAffected()
	}
	if retention > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM proposals
			WHERE status IN (?, ?) AND COALESCE(executed_at, created_at) < ?`,
			string(models.ProposalExecuted), string(models.ProposalDiscarded), now.Add(-retention),
		)
		if err != nil {
			return 0, 0, fmt.Errorf("remove terminal proposals: %w", err)
		}
		removed, _ = res.RowsAffected()
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit prune: %w", err)
	}
	return int(discarded), int(removed), nil
}
