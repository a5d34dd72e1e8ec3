package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway Postgres. The test is skipped when Docker
// is not available.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "jd",
				"POSTGRES_PASSWORD": "jd",
				"POSTGRES_DB":       "jdcrawler",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://jd:jd@%s:%s/jdcrawler?sslmode=disable", host, port.Port())
}

func TestRepository(t *testing.T) {
	dsn := startPostgres(t)

	repo, err := ConnectDB(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()

	testStoreContract(t, repo)

	// schema creation is repeatable
	again, err := ConnectDB(context.Background(), dsn)
	require.NoError(t, err)
	again.Close()
}
