// Package postgres loads the seed catalog from Postgres.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/enrollment/internal/domain"
)

// Loader reads the activities and activity_participants tables once at startup.
type Loader struct {
	pool *pgxpool.Pool
}

// NewLoader constructs a Loader.
func NewLoader(pool *pgxpool.Pool) *Loader {
	return &Loader{pool: pool}
}

// Load implements catalog.Source. Activities come back in catalog position
// order with their participants in roster position order.
func (l *Loader) Load(ctx context.Context) ([]domain.Activity, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT name, description, schedule, max_participants
        FROM activities
        ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}

	activities := make([]domain.Activity, 0)
	index := make(map[string]int)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants); err != nil {
			rows.Close()
			return nil, err
		}
		index[a.Name] = len(activities)
		activities = append(activities, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT activity_name, email
        FROM activity_participants
        ORDER BY activity_name, position`)
	if err != nil {
		return nil, fmt.Errorf("query activity participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, email string
		if err := rows.Scan(&name, &email); err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("participant %s references unknown activity %q", email, name)
		}
		activities[i].Participants = append(activities[i].Participants, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return activities, tx.Commit(ctx)
}
