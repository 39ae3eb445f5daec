package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

const dedupKeyIndex = "uniq_checkout_attempts_dedup_key"

var (
	ErrCheckoutNotFound      = errors.New("checkout attempt not found")
	ErrCheckoutAlreadyExists = errors.New("checkout attempt already exists")
	ErrActiveAttemptExists   = errors.New("active checkout attempt already exists")
	ErrStatusConflict        = errors.New("checkout attempt status changed concurrently")
)

const checkoutAttemptColumns = `
	id, tx_ref, student_id, provider, intent, amount, currency, status, checkout_url,
	requested_months_json, metadata_json, dedup_key, created_at, updated_at
`

type CheckoutAttemptFilter struct {
	StudentID uint64
	HasStatus bool
	Status    int32
	Provider  int32
	Limit     int32
	Offset    int32
}

type CheckoutAttemptRepository struct {
	db DBTX
}

func NewCheckoutAttemptRepository(db DBTX) *CheckoutAttemptRepository {
	return &CheckoutAttemptRepository{db: db}
}

// CreateActive inserts an attempt holding its dedup key. When another row holds the key and
// was created before staleBefore, that row releases the key and the insert is retried once.
func (r *CheckoutAttemptRepository) CreateActive(ctx context.Context, attempt *entity.CheckoutAttempt, staleBefore time.Time) error {
	err := r.insert(ctx, attempt)
	if err == nil || !duplicateEntryOnKey(err, dedupKeyIndex) || attempt.DedupKey == nil {
		return err
	}

	released, err := r.releaseStaleDedupKey(ctx, *attempt.DedupKey, staleBefore, attempt.CreatedAt)
	if err != nil {
		return err
	}
	if released == 0 {
		return ErrActiveAttemptExists
	}

	err = r.insert(ctx, attempt)
	if duplicateEntryOnKey(err, dedupKeyIndex) {
		return ErrActiveAttemptExists
	}
	return err
}

func (r *CheckoutAttemptRepository) insert(ctx context.Context, attempt *entity.CheckoutAttempt) error {
	metadataJSON, err := serializeMetadata(attempt.Metadata)
	if err != nil {
		return err
	}
	monthsJSON, err := serializeMonths(attempt.RequestedMonths)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO checkout_attempts (
			tx_ref, student_id, provider, intent, amount, currency, status, checkout_url,
			requested_months_json, metadata_json, dedup_key, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		attempt.TxRef,
		attempt.StudentID,
		attempt.Provider,
		attempt.Intent,
		attempt.Amount,
		attempt.Currency,
		attempt.Status,
		nullableStringValue(attempt.CheckoutURL),
		monthsJSON,
		metadataJSON,
		nullableStringValue(attempt.DedupKey),
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) && !duplicateEntryOnKey(err, dedupKeyIndex) {
			return ErrCheckoutAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = uint64(id)
	return nil
}

func (r *CheckoutAttemptRepository) releaseStaleDedupKey(ctx context.Context, dedupKey string, staleBefore, now time.Time) (int64, error) {
	query := `
		UPDATE checkout_attempts
		SET dedup_key = NULL, updated_at = ?
		WHERE dedup_key = ? AND created_at < ?
	`

	result, err := r.db.ExecContext(ctx, query, now, dedupKey, staleBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Transition persists a status change made with entity.CheckoutAttempt.Advance. The row must
// still be in fromStatus, otherwise ErrStatusConflict is returned.
func (r *CheckoutAttemptRepository) Transition(ctx context.Context, attempt *entity.CheckoutAttempt, fromStatus int32) error {
	metadataJSON, err := serializeMetadata(attempt.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE checkout_attempts SET
			status = ?,
			checkout_url = ?,
			metadata_json = ?,
			dedup_key = ?,
			updated_at = ?
		WHERE tx_ref = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		attempt.Status,
		nullableStringValue(attempt.CheckoutURL),
		metadataJSON,
		nullableStringValue(attempt.DedupKey),
		attempt.UpdatedAt,
		attempt.TxRef,
		fromStatus,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.FindByTxRef(ctx, attempt.TxRef)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrCheckoutNotFound
		}
		return ErrStatusConflict
	}

	return nil
}

func (r *CheckoutAttemptRepository) FindByTxRef(ctx context.Context, txRef string) (*entity.CheckoutAttempt, error) {
	query := `SELECT ` + checkoutAttemptColumns + ` FROM checkout_attempts WHERE tx_ref = ? LIMIT 1`

	attempt := &entity.CheckoutAttempt{}
	if err := scanCheckoutAttempt(r.db.QueryRowContext(ctx, query, txRef), attempt); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return attempt, nil
}

func (r *CheckoutAttemptRepository) FindActiveByDedupKey(ctx context.Context, dedupKey string, createdSince time.Time) (*entity.CheckoutAttempt, error) {
	query := `SELECT ` + checkoutAttemptColumns + `
		FROM checkout_attempts
		WHERE dedup_key = ?
		  AND status IN (?, ?)
		  AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	attempt := &entity.CheckoutAttempt{}
	err := scanCheckoutAttempt(r.db.QueryRowContext(ctx, query,
		dedupKey,
		entity.CheckoutStatusInitialized,
		entity.CheckoutStatusPending,
		createdSince,
	), attempt)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return attempt, nil
}

func (r *CheckoutAttemptRepository) List(ctx context.Context, filter CheckoutAttemptFilter) ([]*entity.CheckoutAttempt, error) {
	query := `SELECT ` + checkoutAttemptColumns + ` FROM checkout_attempts`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.StudentID > 0 {
		conditions = append(conditions, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Provider > 0 {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryAttempts(ctx, query, args...)
}

func (r *CheckoutAttemptRepository) ListStale(ctx context.Context, status int32, createdBefore time.Time, limit int32) ([]*entity.CheckoutAttempt, error) {
	query := `SELECT ` + checkoutAttemptColumns + `
		FROM checkout_attempts
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.queryAttempts(ctx, query, status, createdBefore, limit)
}

func (r *CheckoutAttemptRepository) queryAttempts(ctx context.Context, query string, args ...interface{}) ([]*entity.CheckoutAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*entity.CheckoutAttempt, 0)
	for rows.Next() {
		item := &entity.CheckoutAttempt{}
		if err := scanCheckoutAttempt(rows, item); err != nil {
			return nil, err
		}
		attempts = append(attempts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckoutAttempt(scan rowScanner, attempt *entity.CheckoutAttempt) error {
	var checkoutURL sql.NullString
	var dedupKey sql.NullString
	var monthsJSON string
	var metadataJSON string

	err := scan.Scan(
		&attempt.ID,
		&attempt.TxRef,
		&attempt.StudentID,
		&attempt.Provider,
		&attempt.Intent,
		&attempt.Amount,
		&attempt.Currency,
		&attempt.Status,
		&checkoutURL,
		&monthsJSON,
		&metadataJSON,
		&dedupKey,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return err
	}

	attempt.CheckoutURL = stringPtrFromNull(checkoutURL)
	attempt.DedupKey = stringPtrFromNull(dedupKey)

	months, err := parseMonths(monthsJSON)
	if err != nil {
		return err
	}
	attempt.RequestedMonths = months

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	attempt.Metadata = metadata

	return nil
}
