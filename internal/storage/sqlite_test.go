package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_publications_created", "idx_publications_item"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestSaveAndGetPublication(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	want := Publication{
		ID:           "pub-001",
		ItemID:       "abc",
		Mode:         ModeHot,
		Target:       "t3_abc",
		ImageURL:     "https://i.imgur.com/xyz.png",
		ReplyID:      "t1_new",
		CommentCount: 42,
		SkippedCount: 1,
		CreatedAt:    now,
	}
	if err := s.SavePublication(want); err != nil {
		t.Fatalf("SavePublication: %v", err)
	}

	got, err := s.GetPublication("pub-001")
	if err != nil {
		t.Fatalf("GetPublication: %v", err)
	}
	if got != want {
		t.Errorf("GetPublication = %+v, want %+v", got, want)
	}
}

func TestGetPublication_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetPublication("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSavePublication_Validation(t *testing.T) {
	s := openTestStore(t)
	if err := s.SavePublication(Publication{ItemID: "abc", Mode: ModeHot}); err == nil {
		t.Error("saved a publication without id")
	}
	if err := s.SavePublication(Publication{ID: "x", ItemID: "abc", Mode: "weird", CreatedAt: time.Now()}); err == nil {
		t.Error("saved a publication with an unknown mode")
	}
}

func TestListPublications_NewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		p := Publication{
			ID:        fmt.Sprintf("pub-%d", i),
			ItemID:    fmt.Sprintf("item-%d", i),
			Mode:      ModeHot,
			ImageURL:  "https://i.example/x.png",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SavePublication(p); err != nil {
			t.Fatalf("SavePublication: %v", err)
		}
	}

	got, err := s.ListPublications(3)
	if err != nil {
		t.Fatalf("ListPublications: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d publications, want 3", len(got))
	}
	for i, want := range []string{"pub-4", "pub-3", "pub-2"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestCountPublications(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	pubs := []Publication{
		{ID: "1", ItemID: "a", Mode: ModeHot, CreatedAt: now},
		{ID: "2", ItemID: "b", Mode: ModeHot, CreatedAt: now},
		{ID: "3", ItemID: "alice", Mode: ModeUser, CreatedAt: now},
	}
	for _, p := range pubs {
		if err := s.SavePublication(p); err != nil {
			t.Fatalf("SavePublication: %v", err)
		}
	}

	counts, err := s.CountPublications()
	if err != nil {
		t.Fatalf("CountPublications: %v", err)
	}
	if counts[ModeHot] != 2 || counts[ModeUser] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestCountPublications_Empty(t *testing.T) {
	s := openTestStore(t)
	counts, err := s.CountPublications()
	if err != nil {
		t.Fatalf("CountPublications: %v", err)
	}
	if counts[ModeHot] != 0 || counts[ModeUser] != 0 {
		t.Errorf("counts = %v, want zeros", counts)
	}
}
