//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
			"MARIADB_DATABASE":      "testdb",
			"MARIADB_ROOT_PASSWORD": "root",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("test:test@tcp(%s:%s)/testdb", host, port.Port())

	// The port opens before the server accepts logins.
	var pool *Pool
	for attempt := range 30 {
		pool, err = Open(ctx, dsn)
		if err == nil {
			break
		}
		if attempt == 29 {
			container.Terminate(ctx)
			t.Fatalf("Failed to open MariaDB: %v", err)
		}
		time.Sleep(time.Second)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool, 0)
	embedding := []float32{0.1, 0.2, 0.3, 0.4}

	if err := repo.Insert(ctx, database.Identity{Name: "Straße", Embedding: embedding}); err != nil {
		t.Fatalf("Failed to insert identity: %v", err)
	}

	got, err := repo.Get(ctx, "STRASSE")
	if err != nil {
		t.Fatalf("Failed to get identity: %v", err)
	}
	if got == nil || got.Name != "Straße" {
		t.Fatalf("Expected identity 'Straße', got %+v", got)
	}
	if len(got.Embedding) != 4 || got.Embedding[3] != 0.4 {
		t.Errorf("Embedding did not round-trip: %v", got.Embedding)
	}

	if err := repo.Insert(ctx, database.Identity{Name: "strasse", Embedding: embedding}); !errors.Is(err, database.ErrDuplicateIdentity) {
		t.Errorf("Expected ErrDuplicateIdentity, got %v", err)
	}
	if err := repo.Insert(ctx, database.Identity{Name: "Bob", Embedding: []float32{1}}); !errors.Is(err, database.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if err := repo.Insert(ctx, database.Identity{Name: "  ", Embedding: embedding}); !errors.Is(err, database.ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}

	exists, err := repo.ContainsFold(ctx, "straSSE")
	if err != nil || !exists {
		t.Errorf("Expected ContainsFold true, got %v (err %v)", exists, err)
	}
	count, err := repo.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Expected count 1, got %d (err %v)", count, err)
	}
}

func TestLoginRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewLoginRepository(pool)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 105 {
		if _, err := repo.Append(ctx, fmt.Sprintf("user-%03d", i), base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Failed to append login %d: %v", i, err)
		}
	}

	recent, err := repo.Recent(ctx)
	if err != nil {
		t.Fatalf("Failed to read recent logins: %v", err)
	}
	if len(recent) != database.AuditLogCapacity {
		t.Fatalf("Expected %d entries, got %d", database.AuditLogCapacity, len(recent))
	}
	if recent[0].Name != "user-104" || recent[len(recent)-1].Name != "user-005" {
		t.Errorf("Unexpected order: first=%s last=%s", recent[0].Name, recent[len(recent)-1].Name)
	}
	if !recent[0].Timestamp.Equal(base.Add(104 * time.Second)) {
		t.Errorf("Unexpected timestamp %v", recent[0].Timestamp)
	}
}
