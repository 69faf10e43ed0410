// Package pgstore provides a PostgreSQL implementation of claims.Store.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("claimsflow/internal/claims/pgstore")

const uniqueViolation = "23505"

// Store persists claims in PostgreSQL. Facts, scores, routing and the
// notification log are kept as JSONB columns.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const claimColumns = `id, policy_number, customer_name, customer_email, customer_phone, vehicle,
	accident_type, accident_date, accident_location, accident_details, description, additional_info,
	photos, status, scores, routing, notifications, assigned_adjuster, estimated_completion,
	created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (*models.Claim, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("claim", id)
	}
	if err != nil {
		recordError(span, err)
		return nil, apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("select claim: %w", err))
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, c *models.Claim) error {
	ctx, span := startSpan(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	cols, err := encodeJSONColumns(c)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordError(span, err)
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.PolicyNumber, c.CustomerName, c.CustomerEmail, c.CustomerPhone, cols.vehicle,
		string(c.AccidentType), c.AccidentDate, c.AccidentLocation, c.AccidentDetails, c.Description, c.AdditionalInfo,
		cols.photos, string(c.Status), cols.scores, cols.routing, cols.notifications, c.AssignedAdjuster,
		nullTime(c.EstimatedCompletion), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		recordError(span, err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewValidationFailedError("id", "claim "+c.ID+" already exists")
		}
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("insert claim: %w", err))
	}

	if err := insertAudit(ctx, tx, c, "created"); err != nil {
		recordError(span, err)
		return err
	}
	if err := tx.Commit(); err != nil {
		recordError(span, err)
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *models.Claim, prevUpdatedAt time.Time) error {
	ctx, span := startSpan(ctx, "pgstore.Save", "UPDATE")
	defer span.End()

	cols, err := encodeJSONColumns(c)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordError(span, err)
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE claims
		SET status = $2, scores = $3, routing = $4, notifications = $5,
		    assigned_adjuster = $6, estimated_completion = $7, updated_at = $8
		WHERE id = $1 AND updated_at = $9`,
		c.ID, string(c.Status), cols.scores, cols.routing, cols.notifications,
		c.AssignedAdjuster, nullTime(c.EstimatedCompletion), c.UpdatedAt, prevUpdatedAt,
	)
	if err != nil {
		recordError(span, err)
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("update claim: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return missingOrStale(ctx, tx, c.ID)
	}

	if err := insertAudit(ctx, tx, c, "updated"); err != nil {
		recordError(span, err)
		return err
	}
	if err := tx.Commit(); err != nil {
		recordError(span, err)
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// missingOrStale tells an unknown id from an UPDATE that lost to another
// writer.
func missingOrStale(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = $1`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.NewNotFoundError("claim", id)
	case err != nil:
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("check claim: %w", err))
	default:
		return apperrors.NewConflictError("claim", id)
	}
}

// List returns matching claims, newest first.
func (s *Store) List(ctx context.Context, f claims.Filter) ([]*models.Claim, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Tier != "" {
		args = append(args, string(f.Tier))
		where = append(where, fmt.Sprintf("routing->>'adjusterTier' = $%d", len(args)))
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordError(span, err)
		return nil, apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("list claims: %w", err))
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			recordError(span, err)
			return nil, apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("scan claim: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		recordError(span, err)
		return nil, apperrors.NewDependencyUnavailableError("postgres", err)
	}
	return out, nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, c *models.Claim, action string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO claim_audit_log (claim_id, action, status, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, action, string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewDependencyUnavailableError("postgres", fmt.Errorf("insert audit log: %w", err))
	}
	return nil
}

type jsonColumns struct {
	vehicle       []byte
	photos        []byte
	scores        []byte
	routing       []byte
	notifications []byte
}

func encodeJSONColumns(c *models.Claim) (jsonColumns, error) {
	var (
		cols jsonColumns
		err  error
	)
	if cols.vehicle, err = json.Marshal(c.Vehicle); err != nil {
		return cols, apperrors.NewInternalError(err)
	}
	photos := c.Photos
	if photos == nil {
		photos = []models.ClaimPhoto{}
	}
	if cols.photos, err = json.Marshal(photos); err != nil {
		return cols, apperrors.NewInternalError(err)
	}
	notifs := c.Notifications
	if notifs == nil {
		notifs = []models.ClaimNotification{}
	}
	if cols.notifications, err = json.Marshal(notifs); err != nil {
		return cols, apperrors.NewInternalError(err)
	}
	if c.Scores != nil {
		if cols.scores, err = json.Marshal(c.Scores); err != nil {
			return cols, apperrors.NewInternalError(err)
		}
	}
	if c.Routing != nil {
		if cols.routing, err = json.Marshal(c.Routing); err != nil {
			return cols, apperrors.NewInternalError(err)
		}
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		c                                            models.Claim
		accidentType, status                         string
		vehicle, photos, scores, routing, notifsJSON []byte
		eta                                          sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.PolicyNumber, &c.CustomerName, &c.CustomerEmail, &c.CustomerPhone, &vehicle,
		&accidentType, &c.AccidentDate, &c.AccidentLocation, &c.AccidentDetails, &c.Description, &c.AdditionalInfo,
		&photos, &status, &scores, &routing, &notifsJSON, &c.AssignedAdjuster, &eta,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.AccidentType = models.AccidentType(accidentType)
	c.Status = models.ClaimStatus(status)
	if err := json.Unmarshal(vehicle, &c.Vehicle); err != nil {
		return nil, fmt.Errorf("decode vehicle: %w", err)
	}
	if err := json.Unmarshal(photos, &c.Photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}
	if err := json.Unmarshal(notifsJSON, &c.Notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	if len(scores) > 0 {
		c.Scores = &models.ClaimScores{}
		if err := json.Unmarshal(scores, c.Scores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
	}
	if len(routing) > 0 {
		c.Routing = &models.RoutingRecommendation{}
		if err := json.Unmarshal(routing, c.Routing); err != nil {
			return nil, fmt.Errorf("decode routing: %w", err)
		}
	}
	if eta.Valid {
		t := eta.Time.UTC()
		c.EstimatedCompletion = &t
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
