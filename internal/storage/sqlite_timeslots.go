package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stveit/argus/internal/models"
)

type sqliteTimeslotRepo struct {
	db *sql.DB
}

func encodeDays(days []models.Day) (string, error) {
	data, err := json.Marshal(days)
	if err != nil {
		return "", fmt.Errorf("encode days: %w", err)
	}
	return string(data), nil
}

func decodeDays(data string) ([]models.Day, error) {
	var days []models.Day
	if err := json.Unmarshal([]byte(data), &days); err != nil {
		return nil, fmt.Errorf("decode days: %w", err)
	}
	return days, nil
}

func (r *sqliteTimeslotRepo) Create(ctx context.Context, slot *models.Timeslot) error {
	existing, err := r.GetByName(ctx, slot.UserID, slot.Name)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil {
		return &models.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("timeslot name %q is already in use", slot.Name),
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO timeslots (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, slot.ID, slot.UserID, slot.Name, slot.CreatedAt, slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert timeslot: %w", err)
	}

	if err := insertRecurrences(ctx, tx, slot); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRecurrences(ctx context.Context, tx *sql.Tx, slot *models.Timeslot) error {
	for i := range slot.Recurrences {
		rec := &slot.Recurrences[i]
		if rec.ID == "" {
			rec.ID = models.NewID()
		}
		rec.TimeslotID = slot.ID

		days, err := encodeDays(rec.Days)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO time_recurrences (id, timeslot_id, days_json, start_ns, end_ns)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, rec.TimeslotID, days, int64(rec.Start), int64(rec.End))
		if err != nil {
			return fmt.Errorf("insert recurrence: %w", err)
		}
	}
	return nil
}

func (r *sqliteTimeslotRepo) GetByID(ctx context.Context, id string) (*models.Timeslot, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM timeslots WHERE id = ?
	`
	slot := &models.Timeslot{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID, &slot.UserID, &slot.Name, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timeslot by id: %w", err)
	}
	if err := r.loadRecurrences(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (r *sqliteTimeslotRepo) GetByName(ctx context.Context, userID, name string) (*models.Timeslot, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM timeslots WHERE user_id = ? AND name = ?
	`
	slot := &models.Timeslot{}
	err := r.db.QueryRowContext(ctx, query, userID, name).Scan(
		&slot.ID, &slot.UserID, &slot.Name, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timeslot by name: %w", err)
	}
	if err := r.loadRecurrences(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (r *sqliteTimeslotRepo) loadRecurrences(ctx context.Context, slot *models.Timeslot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timeslot_id, days_json, start_ns, end_ns
		FROM time_recurrences WHERE timeslot_id = ? ORDER BY start_ns, end_ns
	`, slot.ID)
	if err != nil {
		return fmt.Errorf("load recurrences: %w", err)
	}
	defer rows.Close()

	slot.Recurrences = nil
	for rows.Next() {
		var rec models.TimeRecurrence
		var days string
		var start, end int64
		if err := rows.Scan(&rec.ID, &rec.TimeslotID, &days, &start, &end); err != nil {
			return fmt.Errorf("scan recurrence: %w", err)
		}
		rec.Days, err = decodeDays(days)
		if err != nil {
			return err
		}
		rec.Start = models.TimeOfDay(start)
		rec.End = models.TimeOfDay(end)
		slot.Recurrences = append(slot.Recurrences, rec)
	}
	return rows.Err()
}

func (r *sqliteTimeslotRepo) ListByUser(ctx context.Context, userID string) ([]*models.Timeslot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM timeslots WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list timeslots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Timeslot
	for rows.Next() {
		slot := &models.Timeslot{}
		if err := rows.Scan(&slot.ID, &slot.UserID, &slot.Name, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan timeslot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if err := r.loadRecurrences(ctx, slot); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// Update replaces the timeslot's name and its whole recurrence set.
func (r *sqliteTimeslotRepo) Update(ctx context.Context, slot *models.Timeslot) error {
	existing, err := r.GetByName(ctx, slot.UserID, slot.Name)
	if err != nil && err != models.ErrNotFound {
		return err
	}
	if existing != nil && existing.ID != slot.ID {
		return &models.ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("timeslot name %q is already in use", slot.Name),
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	slot.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE timeslots SET name = ?, updated_at = ? WHERE id = ?
	`, slot.Name, slot.UpdatedAt, slot.ID)
	if err != nil {
		return fmt.Errorf("update timeslot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_recurrences WHERE timeslot_id = ?`, slot.ID); err != nil {
		return fmt.Errorf("delete recurrences: %w", err)
	}
	if err := insertRecurrences(ctx, tx, slot); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sqliteTimeslotRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timeslots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete timeslot: %w", err)
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

func (r *sqliteTimeslotRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeslots WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count timeslots: %w", err)
	}
	return count, nil
}
