package projection

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/storage/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tracklet.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func appendTestFact(t *testing.T, store *sqlite.Store, f fact.Fact) fact.Fact {
	t.Helper()

	appended, err := store.AppendFact(context.Background(), f)
	if err != nil {
		t.Fatalf("AppendFact(%s) error = %v", f.Kind, err)
	}
	return appended
}

func at(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed.UTC()
}
