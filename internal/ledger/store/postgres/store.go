package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"lifeline/internal/ledger/models"
	"lifeline/internal/ledger/store"
	platformdb "lifeline/internal/platform/postgres"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
	txcontext "lifeline/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

const unitColumns = `id, blood_group, component, quantity, volume_ml, expires_at, location,
	tested, outcome, status, donor_id, parent_id, screening, created_at, updated_at`

// PostgresStore persists units in PostgreSQL. Every method runs on the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*PostgresStore)

// WithTxTimeout bounds transactions opened without a caller deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *PostgresStore) {
		s.timeout = d
	}
}

func New(db *sql.DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx opens a database transaction, hands it to fn through ctx, and commits
// only when fn succeeds.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return platformdb.Classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return platformdb.Classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, u *models.Unit) error {
	screening, err := marshalScreening(u.Screening)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		string(u.ID), string(u.BloodGroup), string(u.Component), u.Quantity, u.VolumeML,
		u.ExpiresAt, u.Location, u.Tested, string(u.Outcome), string(u.Status),
		u.DonorID, nullableID(u.ParentID), screening, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if platformdb.IsUniqueViolation(err) {
			return fmt.Errorf("unit %s: %w", u.ID, sentinel.ErrAlreadyUsed)
		}
		return platformdb.Classify(fmt.Errorf("insert unit: %w", err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = $1`
	u, err := scanUnit(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, string(unitID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, platformdb.Classify(fmt.Errorf("find unit: %w", err))
	}
	return u, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.UnitID) ([]*models.Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, unitID := range ids {
		raw[i] = string(unitID)
	}
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = ANY($1) ORDER BY id`
	return s.queryUnits(ctx, query, pq.Array(raw))
}

func (s *PostgresStore) List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.BloodGroup != "" {
		add("blood_group = $%d", string(filter.BloodGroup))
	}
	if filter.Component != "" {
		add("component = $%d", string(filter.Component))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Tested != nil {
		add("tested = $%d", *filter.Tested)
	}
	if filter.ParentID != "" {
		add("parent_id = $%d", string(filter.ParentID))
	}
	if filter.DonorID != "" {
		add("donor_id = $%d", filter.DonorID)
	}

	query := `SELECT ` + unitColumns + ` FROM units`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.queryUnits(ctx, query, args...)
}

// Update is a compare-and-set on status. expires_at and created_at are not in
// the SET list.
func (s *PostgresStore) Update(ctx context.Context, u *models.Unit, expected models.Status) error {
	screening, err := marshalScreening(u.Screening)
	if err != nil {
		return err
	}
	query := `
		UPDATE units
		SET quantity = $2, location = $3, tested = $4, outcome = $5, status = $6,
			screening = $7, updated_at = $8
		WHERE id = $1 AND status = $9
	`
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		string(u.ID), u.Quantity, u.Location, u.Tested, string(u.Outcome), string(u.Status),
		screening, u.UpdatedAt, string(expected),
	)
	if err != nil {
		return platformdb.Classify(fmt.Errorf("update unit: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unit rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var current string
	err = txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `SELECT status FROM units WHERE id = $1`, string(u.ID)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unit %s: %w", u.ID, sentinel.ErrNotFound)
	}
	if err != nil {
		return platformdb.Classify(fmt.Errorf("read unit status: %w", err))
	}
	return fmt.Errorf("unit %s is %s: %w", u.ID, current, sentinel.ErrInvalidState)
}

// ClaimAvailable locks eligible rows with SKIP LOCKED so concurrent claimers
// partition the stock instead of blocking on each other, then flips them to
// reserved in the same statement.
func (s *PostgresStore) ClaimAvailable(ctx context.Context, filter models.ClaimFilter, n int, now time.Time) ([]*models.Unit, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `
		UPDATE units SET status = 'reserved', updated_at = $4
		WHERE id IN (
			SELECT id FROM units
			WHERE blood_group = $1 AND component = $2
				AND status = 'available' AND tested AND outcome = 'Safe'
				AND expires_at > $4
			ORDER BY expires_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + unitColumns
	claimed, err := s.queryUnits(ctx, query, string(filter.BloodGroup), string(filter.Component), n, now)
	if err != nil {
		return nil, err
	}
	sort.Slice(claimed, func(i, j int) bool {
		if !claimed[i].ExpiresAt.Equal(claimed[j].ExpiresAt) {
			return claimed[i].ExpiresAt.Before(claimed[j].ExpiresAt)
		}
		return claimed[i].ID < claimed[j].ID
	})
	return claimed, nil
}

func (s *PostgresStore) CountAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM units
		WHERE blood_group = $1 AND component = $2
			AND status = 'available' AND tested AND outcome = 'Safe'
			AND expires_at > $3
	`
	var count int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		string(filter.BloodGroup), string(filter.Component), now).Scan(&count)
	if err != nil {
		return 0, platformdb.Classify(fmt.Errorf("count allocatable units: %w", err))
	}
	return count, nil
}

// LockAllocatable blocks on rows other transactions hold, so claims still in
// flight are settled before the count is taken.
func (s *PostgresStore) LockAllocatable(ctx context.Context, filter models.ClaimFilter, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT id FROM units
			WHERE blood_group = $1 AND component = $2
				AND status = 'available' AND tested AND outcome = 'Safe'
				AND expires_at > $3
			FOR UPDATE
		) held
	`
	var count int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		string(filter.BloodGroup), string(filter.Component), now).Scan(&count)
	if err != nil {
		return 0, platformdb.Classify(fmt.Errorf("lock allocatable units: %w", err))
	}
	return count, nil
}

func (s *PostgresStore) ListExpiring(ctx context.Context, now time.Time, limit int) ([]*models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units
		WHERE status IN ('available', 'reserved') AND expires_at <= $1
		ORDER BY expires_at, id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryUnits(ctx, query, args...)
}

func (s *PostgresStore) StockLevels(ctx context.Context, now time.Time) ([]models.StockLevel, error) {
	query := `
		SELECT blood_group, component, COUNT(*), COALESCE(SUM(quantity), 0)
		FROM units
		WHERE status = 'available' AND tested AND outcome = 'Safe' AND expires_at > $1
		GROUP BY blood_group, component
		ORDER BY blood_group, component
	`
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, now)
	if err != nil {
		return nil, platformdb.Classify(fmt.Errorf("query stock levels: %w", err))
	}
	defer rows.Close()

	var out []models.StockLevel
	for rows.Next() {
		var (
			lvl              models.StockLevel
			group, component string
		)
		if err := rows.Scan(&group, &component, &lvl.Units, &lvl.Quantity); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		lvl.BloodGroup = models.BloodGroup(group)
		lvl.Component = models.Component(component)
		out = append(out, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, platformdb.Classify(fmt.Errorf("iterate stock levels: %w", err))
	}
	return out, nil
}

func (s *PostgresStore) queryUnits(ctx context.Context, query string, args ...any) ([]*models.Unit, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, platformdb.Classify(fmt.Errorf("query units: %w", err))
	}
	defer rows.Close()

	var out []*models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, platformdb.Classify(fmt.Errorf("iterate units: %w", err))
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (*models.Unit, error) {
	var (
		u                                         models.Unit
		unitID, group, component, outcome, status string
		parentID                                  sql.NullString
		screening                                 []byte
	)
	err := row.Scan(&unitID, &group, &component, &u.Quantity, &u.VolumeML, &u.ExpiresAt, &u.Location,
		&u.Tested, &outcome, &status, &u.DonorID, &parentID, &screening, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id.UnitID(unitID)
	u.BloodGroup = models.BloodGroup(group)
	u.Component = models.Component(component)
	u.Outcome = models.TestOutcome(outcome)
	u.Status = models.Status(status)
	if parentID.Valid {
		u.ParentID = id.UnitID(parentID.String)
	}
	if len(screening) > 0 && string(screening) != "null" {
		var sc models.Screening
		if err := json.Unmarshal(screening, &sc); err != nil {
			return nil, fmt.Errorf("decode screening: %w", err)
		}
		u.Screening = &sc
	}
	return &u, nil
}

func marshalScreening(sc *models.Screening) (any, error) {
	if sc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal screening: %w", err)
	}
	return raw, nil
}

func nullableID(unitID id.UnitID) any {
	if unitID == "" {
		return nil
	}
	return string(unitID)
}
