package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stveit/argus/internal/models"
)

type sqliteIncidentRepo struct {
	db *sql.DB
}

func (r *sqliteIncidentRepo) Create(ctx context.Context, incident *models.Incident) error {
	tags, err := json.Marshal(incident.Tags)
	if err != nil {
		return fmt.Errorf("encode incident tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO incidents (id, description, source_system_id, tags_json, start_time)
		VALUES (?, ?, ?, ?, ?)
	`, incident.ID, incident.Description, incident.SourceSystemID, string(tags), incident.StartTime)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func scanIncident(scan func(...any) error) (*models.Incident, error) {
	incident := &models.Incident{}
	var tags string
	err := scan(&incident.ID, &incident.Description, &incident.SourceSystemID, &tags, &incident.StartTime)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &incident.Tags); err != nil {
		return nil, fmt.Errorf("decode incident tags: %w", err)
	}
	return incident, nil
}

func (r *sqliteIncidentRepo) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, description, source_system_id, tags_json, start_time
		FROM incidents WHERE id = ?
	`, id)
	incident, err := scanIncident(row.Scan)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident by id: %w", err)
	}
	return incident, nil
}

func (r *sqliteIncidentRepo) List(ctx context.Context, limit int) ([]*models.Incident, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, source_system_id, tags_json, start_time
		FROM incidents ORDER BY start_time DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		incident, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}
