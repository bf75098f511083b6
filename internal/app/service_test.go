package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"learningmap/api/internal/config"
	"learningmap/api/internal/hexmap"
	"learningmap/api/internal/identity"
	"learningmap/api/internal/store"
)

var (
	teacherSession = Session{Email: "teacher@example.org", Name: "T. Teacher", Role: "teacher"}
	studentSession = Session{Email: "student@example.org", Name: "S. Student", Role: "student"}
)

// fakeBackend is a minimal remote action endpoint whose behavior the
// test can rig per action.
type fakeBackend struct {
	t        *testing.T
	maps     map[string]hexmap.LearningMap
	failAll  atomic.Bool
	saveHits atomic.Int64
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.failAll.Load() {
			http.Error(w, "backend down", http.StatusBadGateway)
			return
		}
		action := r.URL.Query().Get("action")
		respond := func(payload map[string]any) {
			payload["success"] = true
			if err := json.NewEncoder(w).Encode(payload); err != nil {
				f.t.Errorf("encode response: %v", err)
			}
		}
		switch action {
		case "status":
			respond(map[string]any{"configured": true, "schemaVersion": 3})
		case "getMaps":
			list := make([]hexmap.LearningMap, 0, len(f.maps))
			for _, m := range f.maps {
				list = append(list, m)
			}
			respond(map[string]any{"maps": list})
		case "getMap":
			id := r.URL.Query().Get("mapId")
			if m, ok := f.maps[id]; ok {
				respond(map[string]any{"map": m})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not found", "code": 404})
		case "saveMap":
			f.saveHits.Add(1)
			var m hexmap.LearningMap
			if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
				f.t.Errorf("decode saveMap body: %v", err)
			}
			f.maps[m.MapID] = m
			respond(map[string]any{"map": m})
		case "assignMap":
			var body struct {
				Emails []string `json:"emails"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			respond(map[string]any{"granted": len(body.Emails)})
		default:
			respond(map[string]any{})
		}
	}
}

func setupService(t *testing.T) (*Service, *fakeBackend) {
	t.Helper()

	mr := miniredis.RunT(t)
	local := store.NewLocalStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	local.Seed = store.DefaultSeedMap

	backend := &fakeBackend{t: t, maps: map[string]hexmap.LearningMap{}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	remote := store.NewRemoteClient(srv.URL, 2*time.Second)
	ident := identity.NewService(local, "test-secret", time.Hour)
	cfg := config.Config{DefaultMode: string(ModeLocal)}

	svc := New(cfg, local, remote, ident)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return svc, backend
}

func TestBootstrapSeedsLocalStore(t *testing.T) {
	svc, _ := setupService(t)

	maps, err := svc.GetMaps(context.Background(), teacherSession)
	if err != nil {
		t.Fatalf("GetMaps failed: %v", err)
	}
	if len(maps) != 1 || maps[0].Title != "Getting Started" {
		t.Errorf("seeded maps = %+v", maps)
	}
}

func TestSaveMapRoundTrip(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	m := hexmap.NewMap("Forces and Motion", teacherSession.Email)
	m.AddHex(hexmap.Hex{Label: "Newton's Laws", Type: hexmap.HexTypeCore})

	saved, err := svc.SaveMap(ctx, teacherSession, m)
	if err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	if saved.Meta.UpdatedAt == nil || saved.Meta.UpdatedBy != teacherSession.Email {
		t.Errorf("save did not stamp meta: %+v", saved.Meta)
	}

	got, err := svc.GetMapByID(ctx, teacherSession, saved.MapID)
	if err != nil {
		t.Fatalf("GetMapByID failed: %v", err)
	}
	if got == nil || got.Title != "Forces and Motion" || len(got.Hexes) != 1 {
		t.Fatalf("round trip = %+v", got)
	}
	if got.Hexes[0].Curriculum == nil || got.Hexes[0].Curriculum.Standards == nil {
		t.Error("stored map should come back normalized")
	}
}

func TestSaveMapDefaultsTitleAndID(t *testing.T) {
	svc, _ := setupService(t)

	saved, err := svc.SaveMap(context.Background(), teacherSession, hexmap.LearningMap{})
	if err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	if saved.MapID == "" || saved.Title != hexmap.DefaultTitle {
		t.Errorf("saved = %+v", saved)
	}
}

func TestSaveMapLastWriteWins(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("v1", teacherSession.Email))
	if err != nil {
		t.Fatal(err)
	}
	first.Title = "v2"
	if _, err := svc.SaveMap(ctx, teacherSession, first); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetMapByID(ctx, teacherSession, first.MapID)
	if err != nil || got == nil {
		t.Fatalf("GetMapByID = %v, %v", got, err)
	}
	if got.Title != "v2" {
		t.Errorf("title = %q, want the later write", got.Title)
	}
}

func TestGetMapByIDMissingIsNil(t *testing.T) {
	svc, _ := setupService(t)

	got, err := svc.GetMapByID(context.Background(), teacherSession, "map-nope")
	if err != nil {
		t.Fatalf("missing map should not error: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestDuplicateMapIsolated(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	src := hexmap.NewMap("Original", teacherSession.Email)
	a := src.AddHex(hexmap.Hex{Label: "One", Type: hexmap.HexTypeCore})
	b := src.AddHex(hexmap.Hex{Label: "Two", Type: hexmap.HexTypeExt})
	src.Connect(a, b, hexmap.ConnDefault, "")
	saved, err := svc.SaveMap(ctx, teacherSession, src)
	if err != nil {
		t.Fatal(err)
	}

	dup, err := svc.DuplicateMap(ctx, teacherSession, saved.MapID, "")
	if err != nil {
		t.Fatalf("DuplicateMap failed: %v", err)
	}
	if dup == nil || dup.MapID == saved.MapID {
		t.Fatalf("dup = %+v", dup)
	}
	if dup.Title != "Original (Copy)" {
		t.Errorf("title = %q", dup.Title)
	}

	// Editing the duplicate must not leak into the original.
	dup.Hexes[0].Label = "Changed"
	if _, err := svc.SaveMap(ctx, teacherSession, *dup); err != nil {
		t.Fatal(err)
	}
	orig, err := svc.GetMapByID(ctx, teacherSession, saved.MapID)
	if err != nil || orig == nil {
		t.Fatalf("GetMapByID = %v, %v", orig, err)
	}
	if orig.Hexes[0].Label != "One" {
		t.Errorf("original mutated: %+v", orig.Hexes[0])
	}
}

func TestDuplicateMapMissingSource(t *testing.T) {
	svc, _ := setupService(t)

	dup, err := svc.DuplicateMap(context.Background(), teacherSession, "map-ghost", "Copy")
	if err != nil {
		t.Fatalf("missing source should not error: %v", err)
	}
	if dup != nil {
		t.Errorf("dup = %+v, want nil", dup)
	}
}

func TestRemoteModeFallsBackToLocalOnReadFailure(t *testing.T) {
	svc, backend := setupService(t)
	ctx := context.Background()

	saved, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("Local Copy", teacherSession.Email))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	backend.failAll.Store(true)

	maps, err := svc.GetMaps(ctx, teacherSession)
	if err != nil {
		t.Fatalf("read should absorb remote failure: %v", err)
	}
	found := false
	for _, m := range maps {
		if m.MapID == saved.MapID {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback list missing local map: %+v", maps)
	}

	got, err := svc.GetMapByID(ctx, teacherSession, saved.MapID)
	if err != nil || got == nil {
		t.Errorf("fallback GetMapByID = %v, %v", got, err)
	}
}

func TestRemoteModeWriteFailurePropagates(t *testing.T) {
	svc, backend := setupService(t)
	ctx := context.Background()

	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatal(err)
	}
	backend.failAll.Store(true)

	if _, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("Doomed", teacherSession.Email)); err == nil {
		t.Error("remote save failure should propagate")
	}
	if err := svc.UpdateStudentProgress(ctx, studentSession, "map-1", "hex-1", hexmap.ProgressCompleted, nil); err == nil {
		t.Error("remote progress failure should propagate")
	}
}

func TestRemoteModeSaveMirrorsToLocal(t *testing.T) {
	svc, backend := setupService(t)
	ctx := context.Background()

	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatal(err)
	}
	saved, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("Synced", teacherSession.Email))
	if err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	if backend.saveHits.Load() != 1 {
		t.Errorf("remote saveMap hits = %d", backend.saveHits.Load())
	}

	// The remote copy should survive an outage via the local mirror.
	backend.failAll.Store(true)
	got, err := svc.GetMapByID(ctx, teacherSession, saved.MapID)
	if err != nil || got == nil || got.Title != "Synced" {
		t.Errorf("mirrored map = %v, %v", got, err)
	}
}

func TestModePersistsAndNotifies(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var notified []Mode
	svc.SubscribeMode(func(m Mode) { notified = append(notified, m) })

	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if svc.Mode() != ModeRemote {
		t.Errorf("mode = %q", svc.Mode())
	}
	if len(notified) != 1 || notified[0] != ModeRemote {
		t.Errorf("notifications = %v", notified)
	}

	// Setting the same mode again is not a change.
	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 1 {
		t.Errorf("redundant set should not notify, got %v", notified)
	}
}

func TestSetModeRejectsUnknownAndUnauthorized(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if err := svc.SetMode(ctx, teacherSession, Mode("carrier-pigeon")); err == nil {
		t.Error("unknown mode should be rejected")
	}
	err := svc.SetMode(ctx, studentSession, ModeRemote)
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusForbidden {
		t.Errorf("student SetMode error = %v", err)
	}
}

func TestRemoteSetupFlow(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if err := svc.ProvisionRemote(ctx, teacherSession, "Class of 2027"); err != nil {
		t.Fatalf("ProvisionRemote failed: %v", err)
	}
	if err := svc.AttachRemote(ctx, teacherSession, "sheet-123"); err != nil {
		t.Fatalf("AttachRemote failed: %v", err)
	}
	if err := svc.ProvisionRemote(ctx, studentSession, "x"); err == nil {
		t.Error("student provision should be forbidden")
	}

	if err := svc.ClearRemoteConfig(ctx, teacherSession); err != nil {
		t.Fatalf("ClearRemoteConfig failed: %v", err)
	}
	if svc.Remote().BaseURL() != "" {
		t.Errorf("base url should be cleared, got %q", svc.Remote().BaseURL())
	}
}

func TestProgressRoundTrip(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	score := 0.85
	if err := svc.UpdateStudentProgress(ctx, studentSession, "map-1", "hex-a", hexmap.ProgressCompleted, &score); err != nil {
		t.Fatalf("UpdateStudentProgress failed: %v", err)
	}
	if err := svc.UpdateStudentProgress(ctx, studentSession, "map-1", "hex-b", hexmap.ProgressInProgress, nil); err != nil {
		t.Fatal(err)
	}

	records, err := svc.GetProgressForUserAndMap(ctx, studentSession, "map-1")
	if err != nil {
		t.Fatalf("GetProgressForUserAndMap failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	done := records["hex-a"]
	if done.Status != hexmap.ProgressCompleted || done.Score == nil || *done.Score != 0.85 {
		t.Errorf("hex-a record = %+v", done)
	}
	if done.CompletedAt == nil {
		t.Error("completed record should carry a timestamp")
	}
	if records["hex-b"].CompletedAt != nil {
		t.Error("in-progress record should not carry a completion timestamp")
	}
}

func TestProgressRejectsBadInput(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if err := svc.UpdateStudentProgress(ctx, studentSession, "", "hex-a", hexmap.ProgressCompleted, nil); err == nil {
		t.Error("missing mapId should be rejected")
	}
	if err := svc.UpdateStudentProgress(ctx, studentSession, "map-1", "hex-a", "finished-ish", nil); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestAssignMapToStudents(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	saved, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("Shared", teacherSession.Email))
	if err != nil {
		t.Fatal(err)
	}

	granted, err := svc.AssignMapToStudents(ctx, teacherSession, saved.MapID, []string{
		"student@example.org", "STUDENT@example.org", "not-an-email", "",
	})
	if err != nil {
		t.Fatalf("AssignMapToStudents failed: %v", err)
	}
	if granted != 1 {
		t.Errorf("granted = %d, want 1 after dedupe and filtering", granted)
	}

	// Re-assigning the same student grants nothing new.
	granted, err = svc.AssignMapToStudents(ctx, teacherSession, saved.MapID, []string{"student@example.org"})
	if err != nil || granted != 0 {
		t.Errorf("repeat assign = %d, %v", granted, err)
	}

	maps, err := svc.GetStudentMaps(ctx, studentSession)
	if err != nil {
		t.Fatalf("GetStudentMaps failed: %v", err)
	}
	if len(maps) != 1 || maps[0].MapID != saved.MapID {
		t.Errorf("student maps = %+v", maps)
	}
}

func TestAssignEmptyListIsNoOp(t *testing.T) {
	svc, _ := setupService(t)

	granted, err := svc.AssignMapToStudents(context.Background(), teacherSession, "map-1", nil)
	if err != nil || granted != 0 {
		t.Errorf("empty assign = %d, %v", granted, err)
	}
}

func TestAssignRequiresTeacher(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.AssignMapToStudents(context.Background(), studentSession, "map-1", []string{"x@example.org"})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusForbidden {
		t.Errorf("student assign error = %v", err)
	}
}

func TestAssignMapToClassResolvesRoster(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	classes, err := svc.GetClasses(ctx, teacherSession)
	if err != nil || len(classes) == 0 {
		t.Fatalf("GetClasses = %v, %v", classes, err)
	}
	class := classes[0]

	granted, err := svc.AssignMapToClass(ctx, teacherSession, "map-1", class.ID)
	if err != nil {
		t.Fatalf("AssignMapToClass failed: %v", err)
	}
	if granted != len(class.StudentEmails) {
		t.Errorf("granted = %d, want %d", granted, len(class.StudentEmails))
	}

	granted, err = svc.AssignMapToClass(ctx, teacherSession, "map-1", "class-ghost")
	if err != nil || granted != 0 {
		t.Errorf("unknown class = %d, %v", granted, err)
	}
}

func TestReferenceDataDefaults(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	courses, err := svc.GetCourses(ctx, teacherSession)
	if err != nil || len(courses) == 0 {
		t.Errorf("GetCourses = %v, %v", courses, err)
	}
	units, err := svc.GetUnits(ctx, teacherSession)
	if err != nil || len(units) == 0 {
		t.Errorf("GetUnits = %v, %v", units, err)
	}
	templates, err := svc.GetHexTemplates(ctx, teacherSession)
	if err != nil || len(templates) == 0 {
		t.Errorf("GetHexTemplates = %v, %v", templates, err)
	}
	cfg, err := svc.GetCurriculumConfig(ctx, teacherSession)
	if err != nil || len(cfg.SBARDomains) == 0 {
		t.Errorf("GetCurriculumConfig = %+v, %v", cfg, err)
	}
}

func TestDevTasksStayLocal(t *testing.T) {
	svc, backend := setupService(t)
	ctx := context.Background()

	if err := svc.SetMode(ctx, teacherSession, ModeRemote); err != nil {
		t.Fatal(err)
	}
	backend.failAll.Store(true)

	tasks, err := svc.SaveDevTasks(ctx, teacherSession, []hexmap.DevTask{
		{Title: "Wire up the palette", Status: "todo"},
	})
	if err != nil {
		t.Fatalf("SaveDevTasks failed: %v", err)
	}
	if tasks[0].ID == "" {
		t.Error("new task should get an id")
	}

	got, err := svc.GetDevTasks(ctx, teacherSession)
	if err != nil || len(got) != 1 || got[0].Title != "Wire up the palette" {
		t.Errorf("GetDevTasks = %+v, %v", got, err)
	}
}

func TestGetCurrentUserLocalMode(t *testing.T) {
	svc, _ := setupService(t)

	user, err := svc.GetCurrentUser(context.Background(), studentSession)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if user.Email != studentSession.Email || user.Role != "student" {
		t.Errorf("user = %+v", user)
	}
}

func TestMapAnalytics(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	m := hexmap.NewMap("Analyzed", teacherSession.Email)
	m.AddHex(hexmap.Hex{
		Label: "Linked", Type: hexmap.HexTypeCore, LinkURL: "https://example.org",
		Curriculum: &hexmap.HexCurriculum{SBARDomains: []string{"KU"}},
	})
	saved, err := svc.SaveMap(ctx, teacherSession, m)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := svc.MapAnalytics(ctx, teacherSession, saved.MapID)
	if err != nil || summary == nil {
		t.Fatalf("MapAnalytics = %v, %v", summary, err)
	}
	if summary.TotalHexes != 1 || summary.LinkedCount != 1 || summary.CountsBySBAR["K"] != 1 {
		t.Errorf("summary = %+v", summary)
	}

	missing, err := svc.MapAnalytics(ctx, teacherSession, "map-ghost")
	if err != nil || missing != nil {
		t.Errorf("missing map analytics = %v, %v", missing, err)
	}
}

func TestExportMap(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	saved, err := svc.SaveMap(ctx, teacherSession, hexmap.NewMap("Exported", teacherSession.Email))
	if err != nil {
		t.Fatal(err)
	}

	sheet, err := svc.ExportMap(ctx, teacherSession, saved.MapID, "sheet")
	if err != nil || sheet == nil || sheet.MimeType != "text/csv" {
		t.Errorf("sheet export = %v, %v", sheet, err)
	}
	doc, err := svc.ExportMap(ctx, teacherSession, saved.MapID, "doc")
	if err != nil || doc == nil {
		t.Errorf("doc export = %v, %v", doc, err)
	}
	if _, err := svc.ExportMap(ctx, teacherSession, saved.MapID, "fax"); err == nil {
		t.Error("unknown format should be rejected")
	}
	missing, err := svc.ExportMap(ctx, teacherSession, "map-ghost", "sheet")
	if err != nil || missing != nil {
		t.Errorf("missing map export = %v, %v", missing, err)
	}
}

func TestUnauthenticatedCallsRejected(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.GetMaps(context.Background(), Session{})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != http.StatusUnauthorized {
		t.Errorf("anonymous GetMaps error = %v", err)
	}
}

func TestBootstrapRestoresPersistedMode(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := store.NewLocalStoreWithClient(client)
	local.Seed = store.DefaultSeedMap

	backend := &fakeBackend{t: t, maps: map[string]hexmap.LearningMap{}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	if err := local.SetMode(ctx, string(ModeRemote)); err != nil {
		t.Fatal(err)
	}
	if err := local.SetRemoteURL(ctx, srv.URL); err != nil {
		t.Fatal(err)
	}

	remote := store.NewRemoteClient("", 2*time.Second)
	svc := New(config.Config{DefaultMode: string(ModeLocal)}, local, remote, identity.NewService(local, "test-secret", time.Hour))
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if svc.Mode() != ModeRemote {
		t.Errorf("mode = %q, want restored remote mode", svc.Mode())
	}
	if remote.BaseURL() != srv.URL {
		t.Errorf("base url = %q", remote.BaseURL())
	}
	if remote.State() != store.StateConnected {
		t.Errorf("state = %q, want connected after bootstrap probe", remote.State())
	}
}
