//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/enrollment/internal/domain"
)

func TestLoaderReadsCatalogInPositionOrder(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("enrollment"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, `INSERT INTO activities (name, description, schedule, max_participants, position) VALUES
        ('Programming Class', 'Learn programming fundamentals', 'Tuesdays', 20, 2),
        ('Chess Club', 'Learn strategies', 'Fridays', 12, 1),
        ('Art Club', 'Painting and drawing', 'Thursdays', 15, 3)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO activity_participants (activity_name, email, position) VALUES
        ('Chess Club', 'daniel@mergington.edu', 2),
        ('Chess Club', 'michael@mergington.edu', 1),
        ('Programming Class', 'emma@mergington.edu', 1)`)
	require.NoError(t, err)

	activities, err := NewLoader(pool).Load(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 3)

	require.Equal(t, "Chess Club", activities[0].Name)
	require.Equal(t, 12, activities[0].MaxParticipants)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, activities[0].Participants)
	require.Equal(t, "Programming Class", activities[1].Name)
	require.Equal(t, "Art Club", activities[2].Name)
	require.Empty(t, activities[2].Participants)

	registry, err := domain.NewRegistry(activities)
	require.NoError(t, err)
	require.Equal(t, []string{"Chess Club", "Programming Class", "Art Club"}, registry.Names())
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_catalog.up.sql",
		"../../../db/postgres/migrations/0002_roster_event_log.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		contents, readErr := os.ReadFile(resolvePath(t, rel))
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
