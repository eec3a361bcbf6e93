package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	unit "lifeline/internal/ledger/models"
	platformdb "lifeline/internal/platform/postgres"
	"lifeline/internal/request/models"
	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
	txcontext "lifeline/pkg/platform/tx"
)

const requestColumns = `id, requester_id, requester_name, requester_type, organization_id, patient_name,
	blood_group, component, quantity, priority, status, reserved_unit_ids, delivery, payment,
	rejection_reason, tracking_started, created_at, updated_at, version`

// PostgresStore persists requests. Delivery and payment live in JSONB columns;
// the tracking flag has its own column so it can be flipped conditionally.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
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

// deliveryRecord is the stored shape of models.Delivery. It keeps the code hash,
// which the model hides from JSON.
type deliveryRecord struct {
	DriverName       string     `json:"driver_name,omitempty"`
	ContactNumber    string     `json:"contact_number,omitempty"`
	VehicleNumber    string     `json:"vehicle_number,omitempty"`
	EstimatedArrival string     `json:"estimated_arrival,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CodeHash         string     `json:"code_hash,omitempty"`
	CodeIssuedAt     *time.Time `json:"code_issued_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FailedAttempts   int        `json:"failed_attempts,omitempty"`
}

func encode(r *models.Request) (delivery, payment []byte, err error) {
	d := r.Delivery
	delivery, err = json.Marshal(deliveryRecord{
		DriverName:       d.DriverName,
		ContactNumber:    d.ContactNumber,
		VehicleNumber:    d.VehicleNumber,
		EstimatedArrival: d.EstimatedArrival,
		Notes:            d.Notes,
		StartedAt:        d.StartedAt,
		CodeHash:         d.CodeHash,
		CodeIssuedAt:     d.CodeIssuedAt,
		CompletedAt:      d.CompletedAt,
		FailedAttempts:   d.FailedAttempts,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal delivery: %w", err)
	}
	payment, err = json.Marshal(r.Payment)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payment: %w", err)
	}
	return delivery, payment, nil
}

func unitIDs(ids []id.UnitID) any {
	raw := make([]string, len(ids))
	for i, unitID := range ids {
		raw[i] = string(unitID)
	}
	return pq.Array(raw)
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	delivery, payment, err := encode(r)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID), r.RequesterID, r.RequesterName, string(r.RequesterType), r.OrganizationID,
		r.PatientName, string(r.BloodGroup), string(r.Component), r.Quantity, string(r.Priority),
		string(r.Status), unitIDs(r.ReservedUnitIDs), delivery, payment, r.RejectionReason,
		r.Delivery.TrackingStarted, r.CreatedAt, r.UpdatedAt, r.Version,
	)
	if err != nil {
		if platformdb.IsUniqueViolation(err) {
			return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrAlreadyUsed)
		}
		return platformdb.Classify(fmt.Errorf("insert request: %w", err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	r, err := scanRequest(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, platformdb.Classify(fmt.Errorf("find request: %w", err))
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.OrganizationID != "" {
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.RequesterID != "" {
		add("requester_id = $%d", filter.RequesterID)
	}
	if filter.BloodGroup != "" {
		add("blood_group = $%d", string(filter.BloodGroup))
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.queryRequests(ctx, query, args...)
}

// Update is a compare-and-set on status and version. created_at and
// tracking_started are not in the SET list.
func (s *PostgresStore) Update(ctx context.Context, r *models.Request, expected models.Status) error {
	delivery, payment, err := encode(r)
	if err != nil {
		return err
	}
	query := `
		UPDATE requests
		SET status = $2, reserved_unit_ids = $3, delivery = $4, payment = $5,
			rejection_reason = $6, updated_at = $7, version = version + 1
		WHERE id = $1 AND status = $8 AND version = $9
	`
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID), string(r.Status), unitIDs(r.ReservedUnitIDs), delivery, payment,
		r.RejectionReason, r.UpdatedAt, string(expected), r.Version,
	)
	if err != nil {
		return platformdb.Classify(fmt.Errorf("update request: %w", err))
	}
	if err := s.explainMiss(ctx, res, r.ID, "update request"); err != nil {
		return err
	}
	r.Version++
	return nil
}

// MarkTrackingStarted only matches an approved row whose flag is still false,
// so concurrent first pings flip it once.
func (s *PostgresStore) MarkTrackingStarted(ctx context.Context, requestID id.RequestID, at time.Time) (bool, error) {
	query := `
		UPDATE requests
		SET tracking_started = TRUE, updated_at = $2
		WHERE id = $1 AND status = 'approved' AND NOT tracking_started
	`
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query, uuid.UUID(requestID), at)
	if err != nil {
		return false, platformdb.Classify(fmt.Errorf("mark tracking started: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark tracking started rows affected: %w", err)
	}
	if rows == 1 {
		return true, nil
	}

	var (
		status  string
		started bool
	)
	err = txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT status, tracking_started FROM requests WHERE id = $1`, uuid.UUID(requestID)).Scan(&status, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return false, platformdb.Classify(fmt.Errorf("read request status: %w", err))
	}
	if models.Status(status) != models.StatusApproved {
		return false, fmt.Errorf("request %s is %s: %w", requestID, status, sentinel.ErrInvalidState)
	}
	return false, nil
}

func (s *PostgresStore) ListStaleApproved(ctx context.Context, cutoff time.Time, limit int) ([]*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE status = 'approved'
			AND (delivery->>'started_at')::timestamptz < $1
		ORDER BY (delivery->>'started_at')::timestamptz, id
		LIMIT $2
	`
	return s.queryRequests(ctx, query, cutoff, limit)
}

func (s *PostgresStore) explainMiss(ctx context.Context, res sql.Result, requestID id.RequestID, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 1 {
		return nil
	}
	var (
		current string
		version int64
	)
	err = txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT status, version FROM requests WHERE id = $1`, uuid.UUID(requestID)).Scan(&current, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return platformdb.Classify(fmt.Errorf("read request status: %w", err))
	}
	return fmt.Errorf("request %s is %s at version %d: %w", requestID, current, version, sentinel.ErrInvalidState)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, platformdb.Classify(fmt.Errorf("query requests: %w", err))
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, platformdb.Classify(fmt.Errorf("iterate requests: %w", err))
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var (
		r                                                 models.Request
		requestID                                         uuid.UUID
		requesterType, group, component, priority, status string
		reserved                                          pq.StringArray
		delivery, payment                                 []byte
	)
	err := row.Scan(&requestID, &r.RequesterID, &r.RequesterName, &requesterType, &r.OrganizationID,
		&r.PatientName, &group, &component, &r.Quantity, &priority, &status, &reserved,
		&delivery, &payment, &r.RejectionReason, &r.Delivery.TrackingStarted, &r.CreatedAt, &r.UpdatedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	r.ID = id.RequestID(requestID)
	r.RequesterType = models.RequesterType(requesterType)
	r.BloodGroup = unit.BloodGroup(group)
	r.Component = unit.Component(component)
	r.Priority = models.Priority(priority)
	r.Status = models.Status(status)
	for _, unitID := range reserved {
		r.ReservedUnitIDs = append(r.ReservedUnitIDs, id.UnitID(unitID))
	}

	if len(delivery) > 0 {
		var d deliveryRecord
		if err := json.Unmarshal(delivery, &d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		r.Delivery.DriverName = d.DriverName
		r.Delivery.ContactNumber = d.ContactNumber
		r.Delivery.VehicleNumber = d.VehicleNumber
		r.Delivery.EstimatedArrival = d.EstimatedArrival
		r.Delivery.Notes = d.Notes
		r.Delivery.StartedAt = d.StartedAt
		r.Delivery.CodeHash = d.CodeHash
		r.Delivery.CodeIssuedAt = d.CodeIssuedAt
		r.Delivery.CompletedAt = d.CompletedAt
		r.Delivery.FailedAttempts = d.FailedAttempts
	}
	if len(payment) > 0 {
		if err := json.Unmarshal(payment, &r.Payment); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
	}
	return &r, nil
}
