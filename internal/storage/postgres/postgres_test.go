package postgres

import (
	"context"
	"os"
	"testing"

	"tracker/internal/storage"
	"tracker/internal/storage/storagetest"
)

// Requires a disposable database; every subtest migrates it down and up again.
func TestStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		if err := storage.MigratePostgres(url, storage.Down); err != nil {
			t.Fatalf("migrate down: %v", err)
		}
		if err := storage.MigratePostgres(url, storage.Up); err != nil {
			t.Fatalf("migrate up: %v", err)
		}
		s, err := Open(context.Background(), url)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
