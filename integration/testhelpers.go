//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/schemaver/internal/database"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "schemaver_test"
	testUser      = "schemaver"
	testPassword  = "schemaver"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its
// connection string. The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// OpenPostgres opens a database handle on dsn, closed when the test completes.
func OpenPostgres(t *testing.T, dsn string) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Postgres, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// SetupPostgres starts a container and returns an open handle to it.
func SetupPostgres(t *testing.T) *database.DB {
	t.Helper()

	return OpenPostgres(t, SetupPostgresDSN(t))
}

func countRows(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, db.SQL.QueryRowContext(context.Background(), query, args...).Scan(&n))

	return n
}
