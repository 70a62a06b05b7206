package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stveit/argus/internal/models"
)

type sqliteProfileRepo struct {
	db *sql.DB
}

// Create persists the profile and its filter/destination associations in
// one transaction.
func (r *sqliteProfileRepo) Create(ctx context.Context, profile *models.NotificationProfile) error {
	existing, err := r.GetByTimeslot(ctx, profile.TimeslotID)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil {
		return &models.ValidationError{
			Field:  "timeslot",
			Reason: fmt.Sprintf("notification profile for timeslot %s already exists", profile.TimeslotID),
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_profiles (id, user_id, timeslot_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, profile.ID, profile.UserID, profile.TimeslotID, profile.Active,
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := insertAssociations(ctx, tx, profile); err != nil {
		return err
	}

	return tx.Commit()
}

func insertAssociations(ctx context.Context, tx *sql.Tx, profile *models.NotificationProfile) error {
	for _, filterID := range profile.FilterIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profile_filters (profile_id, filter_id) VALUES (?, ?)
		`, profile.ID, filterID)
		if err != nil {
			return fmt.Errorf("insert profile filter: %w", err)
		}
	}
	for _, destinationID := range profile.DestinationIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profile_destinations (profile_id, destination_id) VALUES (?, ?)
		`, profile.ID, destinationID)
		if err != nil {
			return fmt.Errorf("insert profile destination: %w", err)
		}
	}
	return nil
}

func (r *sqliteProfileRepo) scanOne(row *sql.Row) (*models.NotificationProfile, error) {
	profile := &models.NotificationProfile{}
	err := row.Scan(
		&profile.ID, &profile.UserID, &profile.TimeslotID, &profile.Active,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *sqliteProfileRepo) GetByID(ctx context.Context, id string) (*models.NotificationProfile, error) {
	profile, err := r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, timeslot_id, active, created_at, updated_at
		FROM notification_profiles WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	if err := r.loadAssociations(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *sqliteProfileRepo) GetByTimeslot(ctx context.Context, timeslotID string) (*models.NotificationProfile, error) {
	profile, err := r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, timeslot_id, active, created_at, updated_at
		FROM notification_profiles WHERE timeslot_id = ?
	`, timeslotID))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by timeslot: %w", err)
	}
	if err := r.loadAssociations(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *sqliteProfileRepo) loadAssociations(ctx context.Context, profile *models.NotificationProfile) error {
	profile.FilterIDs = nil
	profile.DestinationIDs = nil

	rows, err := r.db.QueryContext(ctx, `
		SELECT filter_id FROM profile_filters WHERE profile_id = ?
	`, profile.ID)
	if err != nil {
		return fmt.Errorf("load profile filters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan profile filter: %w", err)
		}
		profile.FilterIDs = append(profile.FilterIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT destination_id FROM profile_destinations WHERE profile_id = ?
	`, profile.ID)
	if err != nil {
		return fmt.Errorf("load profile destinations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan profile destination: %w", err)
		}
		profile.DestinationIDs = append(profile.DestinationIDs, id)
	}
	return rows.Err()
}

func (r *sqliteProfileRepo) list(ctx context.Context, query string, args ...any) ([]*models.NotificationProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.NotificationProfile
	for rows.Next() {
		profile := &models.NotificationProfile{}
		err := rows.Scan(
			&profile.ID, &profile.UserID, &profile.TimeslotID, &profile.Active,
			&profile.CreatedAt, &profile.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, profile := range profiles {
		if err := r.loadAssociations(ctx, profile); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func (r *sqliteProfileRepo) ListByUser(ctx context.Context, userID string) ([]*models.NotificationProfile, error) {
	return r.list(ctx, `
		SELECT id, user_id, timeslot_id, active, created_at, updated_at
		FROM notification_profiles WHERE user_id = ? ORDER BY created_at
	`, userID)
}

func (r *sqliteProfileRepo) ListAll(ctx context.Context) ([]*models.NotificationProfile, error) {
	return r.list(ctx, `
		SELECT id, user_id, timeslot_id, active, created_at, updated_at
		FROM notification_profiles ORDER BY created_at
	`)
}

// Update rewrites the profile row and replaces its associations. Binding
// the profile to a different timeslot updates the key column in place;
// the unique constraint on timeslot_id keeps one profile per timeslot
// and the exposed profile ID stays stable.
func (r *sqliteProfileRepo) Update(ctx context.Context, profile *models.NotificationProfile) error {
	existing, err := r.GetByTimeslot(ctx, profile.TimeslotID)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil && existing.ID != profile.ID {
		return &models.ValidationError{
			Field:  "timeslot",
			Reason: fmt.Sprintf("notification profile for timeslot %s already exists", profile.TimeslotID),
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE notification_profiles
		SET timeslot_id = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, profile.TimeslotID, profile.Active, profile.UpdatedAt, profile.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_filters WHERE profile_id = ?`, profile.ID); err != nil {
		return fmt.Errorf("delete profile filters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_destinations WHERE profile_id = ?`, profile.ID); err != nil {
		return fmt.Errorf("delete profile destinations: %w", err)
	}
	if err := insertAssociations(ctx, tx, profile); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteProfileRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notification_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
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

func (r *sqliteProfileRepo) Destinations(ctx context.Context, profileID string) ([]*models.DestinationConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.user_id, d.media_slug, d.settings_json, d.created_at, d.updated_at
		FROM destinations d
		JOIN profile_destinations pd ON pd.destination_id = d.id
		WHERE pd.profile_id = ?
		ORDER BY d.media_slug, d.created_at
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile destinations: %w", err)
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

func (r *sqliteProfileRepo) Filters(ctx context.Context, profileID string) ([]*models.Filter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.user_id, f.name, f.expr_json, f.created_at, f.updated_at
		FROM filters f
		JOIN profile_filters pf ON pf.filter_id = f.id
		WHERE pf.profile_id = ?
		ORDER BY f.name
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile filters: %w", err)
	}
	defer rows.Close()

	var filters []*models.Filter
	for rows.Next() {
		filter, err := scanFilter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		filters = append(filters, filter)
	}
	return filters, rows.Err()
}
