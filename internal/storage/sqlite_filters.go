package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stveit/argus/internal/filtering"
	"github.com/stveit/argus/internal/models"
)

type sqliteFilterRepo struct {
	db *sql.DB
}

// Create persists a filter after re-validating its expression: whatever
// path a structured expression arrived on, nothing uncompilable lands in
// storage.
func (r *sqliteFilterRepo) Create(ctx context.Context, filter *models.Filter) error {
	if err := filtering.Validate(filter.Expr); err != nil {
		return err
	}

	existing, err := r.GetByName(ctx, filter.UserID, filter.Name)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil {
		return &models.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("filter name %q is already in use", filter.Name),
		}
	}

	expr, err := json.Marshal(filter.Expr)
	if err != nil {
		return fmt.Errorf("encode filter expression: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO filters (id, user_id, name, expr_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, filter.ID, filter.UserID, filter.Name, string(expr), filter.CreatedAt, filter.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	return nil
}

func scanFilter(scan func(...any) error) (*models.Filter, error) {
	filter := &models.Filter{}
	var expr string
	err := scan(&filter.ID, &filter.UserID, &filter.Name, &expr, &filter.CreatedAt, &filter.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(expr), &filter.Expr); err != nil {
		return nil, fmt.Errorf("decode filter expression: %w", err)
	}
	return filter, nil
}

func (r *sqliteFilterRepo) GetByID(ctx context.Context, id string) (*models.Filter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, expr_json, created_at, updated_at
		FROM filters WHERE id = ?
	`, id)
	filter, err := scanFilter(row.Scan)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get filter by id: %w", err)
	}
	return filter, nil
}

func (r *sqliteFilterRepo) GetByName(ctx context.Context, userID, name string) (*models.Filter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, expr_json, created_at, updated_at
		FROM filters WHERE user_id = ? AND name = ?
	`, userID, name)
	filter, err := scanFilter(row.Scan)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get filter by name: %w", err)
	}
	return filter, nil
}

func (r *sqliteFilterRepo) ListByUser(ctx context.Context, userID string) ([]*models.Filter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, expr_json, created_at, updated_at
		FROM filters WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
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

func (r *sqliteFilterRepo) Update(ctx context.Context, filter *models.Filter) error {
	if err := filtering.Validate(filter.Expr); err != nil {
		return err
	}

	existing, err := r.GetByName(ctx, filter.UserID, filter.Name)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil && existing.ID != filter.ID {
		return &models.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("filter name %q is already in use", filter.Name),
		}
	}

	expr, err := json.Marshal(filter.Expr)
	if err != nil {
		return fmt.Errorf("encode filter expression: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE filters SET name = ?, expr_json = ?, updated_at = ? WHERE id = ?
	`, filter.Name, string(expr), filter.UpdatedAt, filter.ID)
	if err != nil {
		return fmt.Errorf("update filter: %w", err)
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

// Delete removes an unreferenced filter. A filter still referenced by a
// notification profile is rejected and left untouched.
func (r *sqliteFilterRepo) Delete(ctx context.Context, id string) error {
	referenced, err := r.IsReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return &models.ReferentialConflictError{
			Entity:       "filter",
			ID:           id,
			ReferencedBy: "notification profile",
		}
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
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

func (r *sqliteFilterRepo) IsReferenced(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM profile_filters WHERE filter_id = ?
	`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check filter references: %w", err)
	}
	return count > 0, nil
}
