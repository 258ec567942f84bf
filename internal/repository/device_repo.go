package repository

import (
	"context"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DeviceRepository struct {
	db *pgxpool.Pool
}

func NewDeviceRepository(db *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id::text, user_id, device_type, device_name, push_token, is_active, last_active, created_at`

func (r *DeviceRepository) Create(ctx context.Context, d *domain.Device) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO user_devices (id, user_id, device_type, device_name, push_token, is_active)
		 VALUES ($1::uuid, $2, $3, $4, $5, TRUE)
		 RETURNING is_active, last_active, created_at`,
		d.ID, d.UserID, d.DeviceType, d.DeviceName, d.PushToken,
	).Scan(&d.IsActive, &d.LastActive, &d.CreatedAt)
	return mapError(err)
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*domain.Device, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deviceColumns+`
		 FROM user_devices
		 WHERE user_id = $1 AND (NOT $2 OR is_active)
		 ORDER BY last_active DESC`,
		userID, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDevices(rows)
}

// Touch marks a device as seen now.
func (r *DeviceRepository) Touch(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_devices SET last_active = NOW() WHERE id::text = $1 AND user_id = $2 AND is_active`,
		id, userID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) Revoke(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_devices SET is_active = FALSE WHERE id::text = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RevokeAllExcept deactivates every active device of the user but keepID.
func (r *DeviceRepository) RevokeAllExcept(ctx context.Context, userID int64, keepID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_devices SET is_active = FALSE
		 WHERE user_id = $1 AND is_active AND id::text <> $2`,
		userID, keepID,
	)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanDevices(rows pgx.Rows) ([]*domain.Device, error) {
	devices := []*domain.Device{}
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.DeviceType, &d.DeviceName, &d.PushToken, &d.IsActive, &d.LastActive, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}
