// Package pgtest starts throwaway PostgreSQL containers for integration
// tests. Tests are skipped when no container runtime is reachable.
package pgtest

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// ImagePostgres is plain PostgreSQL.
	ImagePostgres = "postgres:16-alpine"
	// ImagePgvector ships the vector extension.
	ImagePgvector = "pgvector/pgvector:pg16"
)

func init() {
	// Prefer a podman machine socket when DOCKER_HOST is unset.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// Start runs image and returns a DSN for it. The container is terminated
// when the test finishes.
func Start(t *testing.T, image string) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in -short mode")
	}
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if !runtimeAvailable() {
		t.Skip("no container runtime found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		image,
		pgmodule.WithDatabase("voxorder_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}
	return dsn
}

func runtimeAvailable() bool {
	if os.Getenv("DOCKER_HOST") != "" {
		return true
	}
	for _, bin := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}
