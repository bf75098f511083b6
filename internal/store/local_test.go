package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"learningmap/api/internal/hexmap"
)

func setupLocal(t *testing.T) *LocalStore {
	t.Helper()
	s := miniredis.RunT(t)
	local, err := NewLocalStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	return local
}

func TestPutAndGetMap(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	m := hexmap.NewMap("Unit 1", "t@example.com")
	m.AddHex(hexmap.Hex{Label: "Start", Type: hexmap.HexTypeCore})

	if err := local.PutMap(ctx, m); err != nil {
		t.Fatalf("PutMap failed: %v", err)
	}

	got, err := local.GetMap(ctx, m.MapID)
	if err != nil {
		t.Fatalf("GetMap failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetMap returned nil for a stored map")
	}
	if got.Title != "Unit 1" || len(got.Hexes) != 1 {
		t.Errorf("round-tripped map = %+v", got)
	}
}

func TestGetMapMissing(t *testing.T) {
	local := setupLocal(t)

	got, err := local.GetMap(context.Background(), "map-unknown")
	if err != nil {
		t.Fatalf("GetMap failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown map, got %+v", got)
	}
}

func TestPutMapUpserts(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	m := hexmap.NewMap("v1", "")
	if err := local.PutMap(ctx, m); err != nil {
		t.Fatal(err)
	}
	m.Title = "v2"
	if err := local.PutMap(ctx, m); err != nil {
		t.Fatal(err)
	}

	maps, err := local.ListMaps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 {
		t.Fatalf("expected one stored map, got %d", len(maps))
	}
	if maps[0].Title != "v2" {
		t.Errorf("title = %q, want last write to win", maps[0].Title)
	}
}

func TestAssignFiltersDuplicates(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	granted, err := local.Assign(ctx, "map-1", []string{"a@x.org", "b@x.org"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if granted != 2 {
		t.Errorf("granted = %d, want 2", granted)
	}

	// Second grant of an existing assignment is filtered, not an error.
	granted, err = local.Assign(ctx, "map-1", []string{"a@x.org", "c@x.org"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if granted != 1 {
		t.Errorf("granted = %d, want 1", granted)
	}

	ids, err := local.AssignedMapIDs(ctx, "a@x.org")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "map-1" {
		t.Errorf("assigned ids = %v", ids)
	}
}

func TestAssignEmptyListIsNoOp(t *testing.T) {
	local := setupLocal(t)

	granted, err := local.Assign(context.Background(), "map-1", nil)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if granted != 0 {
		t.Errorf("granted = %d, want 0", granted)
	}
}

func TestProgressUpsertReplaces(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	rec := hexmap.ProgressRecord{Email: "a@x.org", MapID: "map-1", HexID: "hex-1", Status: hexmap.ProgressInProgress}
	if err := local.UpsertProgress(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Status = hexmap.ProgressCompleted
	score := 0.9
	rec.Score = &score
	if err := local.UpsertProgress(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// A different student on the same hex keeps a separate record.
	if err := local.UpsertProgress(ctx, hexmap.ProgressRecord{
		Email: "b@x.org", MapID: "map-1", HexID: "hex-1", Status: hexmap.ProgressNotStarted,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := local.ProgressForUserAndMap(ctx, "a@x.org", "map-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got["hex-1"].Status != hexmap.ProgressCompleted || got["hex-1"].Score == nil || *got["hex-1"].Score != 0.9 {
		t.Errorf("record = %+v", got["hex-1"])
	}
}

func TestBootstrapSeedsOnce(t *testing.T) {
	local := setupLocal(t)
	local.Seed = DefaultSeedMap
	ctx := context.Background()

	if err := local.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if err := local.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}

	maps, err := local.ListMaps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 {
		t.Fatalf("expected exactly one seeded map, got %d", len(maps))
	}
	if maps[0].Title != "Getting Started" {
		t.Errorf("seed title = %q", maps[0].Title)
	}
}

func TestModeAndRemoteURLPersist(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	mode, err := local.GetMode(ctx)
	if err != nil || mode != "" {
		t.Fatalf("GetMode before set = %q, %v", mode, err)
	}
	if err := local.SetMode(ctx, "api"); err != nil {
		t.Fatal(err)
	}
	mode, err = local.GetMode(ctx)
	if err != nil || mode != "api" {
		t.Errorf("GetMode = %q, %v", mode, err)
	}

	if err := local.SetRemoteURL(ctx, "https://remote.example.org/exec"); err != nil {
		t.Fatal(err)
	}
	url, err := local.GetRemoteURL(ctx)
	if err != nil || url != "https://remote.example.org/exec" {
		t.Errorf("GetRemoteURL = %q, %v", url, err)
	}
}

func TestDevTasksRoundTrip(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	tasks := []hexmap.DevTask{{ID: "dt-1", Title: "polish analytics panel", Status: "open"}}
	if err := local.SaveDevTasks(ctx, tasks); err != nil {
		t.Fatal(err)
	}
	got, err := local.ListDevTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "polish analytics panel" {
		t.Errorf("tasks = %+v", got)
	}
}

func TestUsersRoundTrip(t *testing.T) {
	local := setupLocal(t)
	ctx := context.Background()

	user, hash, err := local.GetUser(ctx, "nobody@x.org")
	if err != nil || user != nil || hash != "" {
		t.Fatalf("GetUser(missing) = %v, %q, %v", user, hash, err)
	}

	if err := local.PutUser(ctx, hexmap.User{Email: "t@x.org", Name: "Teacher", Role: "teacher"}, "hashed"); err != nil {
		t.Fatal(err)
	}
	user, hash, err = local.GetUser(ctx, "t@x.org")
	if err != nil {
		t.Fatal(err)
	}
	if user == nil || user.Role != "teacher" || hash != "hashed" {
		t.Errorf("user = %+v, hash = %q", user, hash)
	}
}
