package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stveit/argus/internal/models"
)

type sqliteDestinationRepo struct {
	db *sql.DB
}

func (r *sqliteDestinationRepo) Create(ctx context.Context, destination *models.DestinationConfig) error {
	settings, err := models.EncodeSettings(destination.Settings)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO destinations (id, user_id, media_slug, settings_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, destination.ID, destination.UserID, destination.MediaSlug, string(settings),
		destination.CreatedAt, destination.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert destination: %w", err)
	}
	return nil
}

func scanDestination(scan func(...any) error) (*models.DestinationConfig, error) {
	d := &models.DestinationConfig{}
	var settings string
	err := scan(&d.ID, &d.UserID, &d.MediaSlug, &settings, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Settings, err = models.DecodeSettings(d.MediaSlug, []byte(settings))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *sqliteDestinationRepo) GetByID(ctx context.Context, id string) (*models.DestinationConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, media_slug, settings_json, created_at, updated_at
		FROM destinations WHERE id = ?
	`, id)
	destination, err := scanDestination(row.Scan)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get destination by id: %w", err)
	}
	return destination, nil
}

func (r *sqliteDestinationRepo) ListByUser(ctx context.Context, userID string) ([]*models.DestinationConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, media_slug, settings_json, created_at, updated_at
		FROM destinations WHERE user_id = ? ORDER BY media_slug, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var destinations []*models.DestinationConfig
	for rows.Next() {
		destination, err := scanDestination(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		destinations = append(destinations, destination)
	}
	return destinations, rows.Err()
}

func (r *sqliteDestinationRepo) Update(ctx context.Context, destination *models.DestinationConfig) error {
	settings, err := models.EncodeSettings(destination.Settings)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE destinations SET settings_json = ?, updated_at = ? WHERE id = ?
	`, string(settings), destination.UpdatedAt, destination.ID)
	if err != nil {
		return fmt.Errorf("update destination: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a destination. Association rows in profiles cascade;
// callers that want to refuse deleting a referenced destination check
// IsReferenced first.
func (r *sqliteDestinationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM destinations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *sqliteDestinationRepo) IsReferenced(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM profile_destinations WHERE destination_id = ?
	`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check destination references: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteDestinationRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM destinations WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count destinations: %w", err)
	}
	return count, nil
}
