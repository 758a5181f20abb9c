package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

// PostgresIndex is the optional event index backing dashboard search.
// The JSONL archive stays the source of truth; rows here are disposable.
type PostgresIndex struct {
	db *pgxpool.Pool
}

func NewPostgresIndex(db *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{db: db}
}

const eventColumns = `id, created_at, received_at, source, threat_name, classification,
	agent_name, agent_os, site_name, severity`

func (r *PostgresIndex) SaveBatch(ctx context.Context, events []domain.Event) error {
	batch := &pgx.Batch{}

	query := `
		INSERT INTO events (id, created_at, received_at, source, threat_name, classification, agent_name, agent_os, site_name, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	for _, ev := range events {
		batch.Queue(query,
			ev.ID,
			ev.CreatedAt,
			ev.ReceivedAt,
			string(ev.Source),
			ev.ThreatName,
			ev.Classification,
			ev.AgentName,
			ev.AgentOS,
			ev.SiteName,
			ev.Severity,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("failed to index events: %w", err)
	}
	return nil
}

func (r *PostgresIndex) FindSince(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE received_at >= $1
		ORDER BY received_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events since %v: %w", since, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *PostgresIndex) Search(ctx context.Context, term string, limit int) ([]domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE threat_name ILIKE '%' || $1 || '%'
		   OR classification ILIKE '%' || $1 || '%'
		   OR agent_name ILIKE '%' || $1 || '%'
		ORDER BY received_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event

	for rows.Next() {
		var ev domain.Event
		var source string
		err := rows.Scan(
			&ev.ID,
			&ev.CreatedAt,
			&ev.ReceivedAt,
			&source,
			&ev.ThreatName,
			&ev.Classification,
			&ev.AgentName,
			&ev.AgentOS,
			&ev.SiteName,
			&ev.Severity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Source = domain.EventSource(source)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}
