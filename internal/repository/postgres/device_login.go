package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
)

const deviceLoginColumns = `id, user_id, code, status, created_at, expires_at, resolved_at, claimed_at, acted_device`

// CreateDeviceLogin supersedes any still-pending request for the user and
// inserts the new one. Both statements run in one transaction so no
// interleaving can observe two pending rows for the same user.
func (r *Repository) CreateDeviceLogin(ctx context.Context, req *domain.DeviceLoginRequest) error {
	if req == nil {
		return repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const supersede = `UPDATE device_login_requests
		SET status = 'superseded', resolved_at = NOW()
		WHERE user_id = $1 AND status = 'pending'`
	if _, err := tx.Exec(ctx, supersede, req.UserID); err != nil {
		return err
	}

	const insert = `INSERT INTO device_login_requests (id, user_id, code, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insert,
		req.ID,
		req.UserID,
		req.Code,
		req.Status,
		req.CreatedAt.UTC(),
		req.ExpiresAt.UTC(),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetDeviceLogin fetches a request by identifier.
func (r *Repository) GetDeviceLogin(ctx context.Context, id string) (*domain.DeviceLoginRequest, error) {
	const query = `SELECT ` + deviceLoginColumns + ` FROM device_login_requests WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(id))
	return scanDeviceLogin(row)
}

// ResolveDeviceLogin transitions a pending, unexpired request to the given
// terminal status. The status guard makes concurrent resolvers race for a
// single winner; the loser sees ErrInvalidArgument.
func (r *Repository) ResolveDeviceLogin(ctx context.Context, id, status, actedDevice string) (*domain.DeviceLoginRequest, error) {
	const query = `UPDATE device_login_requests
		SET status = $2,
			resolved_at = NOW(),
			acted_device = COALESCE(NULLIF($3, ''), acted_device)
		WHERE id = $1
			AND status = 'pending'
			AND expires_at > NOW()
		RETURNING ` + deviceLoginColumns
	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(id), status, strings.TrimSpace(actedDevice))
	req, err := scanDeviceLogin(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrInvalidArgument
		}
		return nil, err
	}
	return req, nil
}

// MarkDeviceLoginExpired materializes lazy expiry for a still-pending request.
func (r *Repository) MarkDeviceLoginExpired(ctx context.Context, id string) error {
	const query = `UPDATE device_login_requests
		SET status = 'expired', resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	_, err := r.pool.Exec(ctx, query, strings.TrimSpace(id))
	return err
}

// ClaimDeviceLogin stamps the one-shot token delivery marker. Only the first
// caller against an approved, unclaimed request wins.
func (r *Repository) ClaimDeviceLogin(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE device_login_requests
		SET claimed_at = $2
		WHERE id = $1 AND status = 'approved' AND claimed_at IS NULL`
	cmdTag, err := r.pool.Exec(ctx, query, strings.TrimSpace(id), at.UTC())
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListPendingDeviceLogins returns requests still pending for a user, oldest first.
func (r *Repository) ListPendingDeviceLogins(ctx context.Context, userID string) ([]domain.DeviceLoginRequest, error) {
	const query = `SELECT ` + deviceLoginColumns + `
		FROM device_login_requests
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at ASC`
	return r.listDeviceLogins(ctx, query, userID, 0)
}

// ListResolvedDeviceLogins returns terminal requests for a user, newest first.
func (r *Repository) ListResolvedDeviceLogins(ctx context.Context, userID string, limit int) ([]domain.DeviceLoginRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + deviceLoginColumns + `
		FROM device_login_requests
		WHERE user_id = $1 AND status <> 'pending'
		ORDER BY created_at DESC
		LIMIT $2`
	return r.listDeviceLogins(ctx, query, userID, limit)
}

func (r *Repository) listDeviceLogins(ctx context.Context, query, userID string, limit int) ([]domain.DeviceLoginRequest, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.pool.Query(ctx, query, userID, limit)
	} else {
		rows, err = r.pool.Query(ctx, query, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.DeviceLoginRequest, 0)
	for rows.Next() {
		req, err := scanDeviceLoginRow(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanDeviceLogin(row pgx.Row) (*domain.DeviceLoginRequest, error) {
	req, err := scanDeviceLoginRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func scanDeviceLoginRow(row pgx.Row) (*domain.DeviceLoginRequest, error) {
	var (
		req         domain.DeviceLoginRequest
		resolvedAt  *time.Time
		claimedAt   *time.Time
		actedDevice *string
	)
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Code,
		&req.Status,
		&req.CreatedAt,
		&req.ExpiresAt,
		&resolvedAt,
		&claimedAt,
		&actedDevice,
	); err != nil {
		return nil, err
	}
	req.ResolvedAt = resolvedAt
	req.ClaimedAt = claimedAt
	if actedDevice != nil {
		req.ActedDevice = *actedDevice
	}
	return &req, nil
}
