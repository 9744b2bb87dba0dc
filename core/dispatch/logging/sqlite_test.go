package logging

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:cycles.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now()
	recs := []CycleRecord{
		{ID: "c1", Timestamp: now, StationID: "st", Events: []EventRecord{{Kind: "reentry", Platform: 1, BusID: "77"}}, Displays: []string{" ", "77"}},
		{ID: "c2", Timestamp: now.Add(time.Second), StationID: "st", Assignments: []AssignmentRecord{{Platform: 4, BusID: "55"}}, Displays: []string{" ", "77", " ", " ", "55"}},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := store.Query(context.Background(), LogQuery{BusID: "77"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	out, err = store.Query(context.Background(), LogQuery{BusID: "55", Start: now})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c2" {
		t.Fatalf("unexpected records %#v", out)
	}
}
