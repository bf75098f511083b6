// Package app is the persistence facade the UI layer consumes: every
// map, progress and reference-data operation goes through Service,
// which normalizes documents, enforces permissions and routes each
// call to the local or remote backend per the current mode.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"learningmap/api/internal/analytics"
	"learningmap/api/internal/config"
	"learningmap/api/internal/email"
	"learningmap/api/internal/export"
	"learningmap/api/internal/hexmap"
	"learningmap/api/internal/identity"
	"learningmap/api/internal/rbac"
	"learningmap/api/internal/store"
	"learningmap/api/internal/util"
)

// Mode selects the backing store for map and reference data.
type Mode string

const (
	// ModeLocal serves everything from the local store ("mock" in the
	// UI's vocabulary).
	ModeLocal Mode = "mock"
	// ModeRemote routes through the remote action-dispatch endpoint.
	ModeRemote Mode = "api"
)

// Session is the authenticated principal attached to every call.
type Session struct {
	Email string
	Name  string
	Role  string
}

// catalog is the optional Postgres-backed reference data source used
// in local mode when configured.
type catalog interface {
	Courses(ctx context.Context) ([]hexmap.Course, error)
	Units(ctx context.Context) ([]hexmap.Unit, error)
	Classes(ctx context.Context) ([]hexmap.ClassGroup, error)
	HexTemplates(ctx context.Context) ([]hexmap.HexTemplate, error)
	CurriculumConfig(ctx context.Context) (*hexmap.CurriculumConfig, error)
}

// Service is the facade. Reads degrade gracefully (remote failures
// fall back to the local copy or an empty result); writes propagate
// failures so callers know a save did not persist.
type Service struct {
	cfg      config.Config
	local    *store.LocalStore
	remote   *store.RemoteClient
	identity *identity.Service
	catalog  catalog
	mailer   *email.Service

	modeMu   sync.Mutex
	mode     Mode
	modeSubs []func(Mode)

	// Per-map locks keep saves for one map applied in issuance order.
	saveMu    sync.Mutex
	saveLocks map[string]*sync.Mutex

	reads *seqGuard
}

// New creates the facade. remote may have an empty base URL until one
// is configured at runtime.
func New(cfg config.Config, local *store.LocalStore, remote *store.RemoteClient, ident *identity.Service) *Service {
	mode := ModeLocal
	if Mode(cfg.DefaultMode) == ModeRemote {
		mode = ModeRemote
	}
	return &Service{
		cfg:       cfg,
		local:     local,
		remote:    remote,
		identity:  ident,
		mode:      mode,
		saveLocks: map[string]*sync.Mutex{},
		reads:     newSeqGuard(),
	}
}

// WithCatalog attaches the optional Postgres reference catalog.
func (s *Service) WithCatalog(c catalog) *Service {
	s.catalog = c
	return s
}

// WithMailer attaches the optional assignment-notification mailer.
func (s *Service) WithMailer(m *email.Service) *Service {
	s.mailer = m
	return s
}

// Identity exposes the identity service to the HTTP layer.
func (s *Service) Identity() *identity.Service { return s.identity }

// Remote exposes the remote client's connection state to the HTTP layer.
func (s *Service) Remote() *store.RemoteClient { return s.remote }

// Ping reports local-store health.
func (s *Service) Ping(ctx context.Context) error { return s.local.Ping(ctx) }

// Bootstrap restores persisted configuration (mode, remote base URL),
// seeds the local store on first run and probes the remote endpoint
// when remote mode is active.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.local.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap local store: %w", err)
	}

	if url, err := s.local.GetRemoteURL(ctx); err != nil {
		log.Printf("facade: restore remote url: %v", err)
	} else if url != "" {
		s.remote.SetBaseURL(url)
	}

	if mode, err := s.local.GetMode(ctx); err != nil {
		log.Printf("facade: restore mode: %v", err)
	} else if mode != "" {
		s.setModeValue(Mode(mode))
	}

	if s.Mode() == ModeRemote {
		if _, err := s.remote.CheckStatus(ctx); err != nil {
			log.Printf("facade: remote status check failed: %v", err)
		}
	}
	return nil
}

// Mode returns the current backend mode.
func (s *Service) Mode() Mode {
	s.modeMu.Lock()
	defer s.modeMu.Unlock()
	return s.mode
}

// SubscribeMode registers a listener invoked on every mode change.
func (s *Service) SubscribeMode(fn func(Mode)) {
	s.modeMu.Lock()
	defer s.modeMu.Unlock()
	s.modeSubs = append(s.modeSubs, fn)
}

// SetMode switches backends, persists the choice and notifies
// subscribers.
func (s *Service) SetMode(ctx context.Context, session Session, mode Mode) error {
	if err := s.require(session, rbac.ActionConfigure); err != nil {
		return err
	}
	if mode != ModeLocal && mode != ModeRemote {
		return domainError(http.StatusUnprocessableEntity, "INVALID_MODE", fmt.Sprintf("unknown mode %q", mode))
	}
	if err := s.local.SetMode(ctx, string(mode)); err != nil {
		return fmt.Errorf("persist mode: %w", err)
	}
	s.setModeValue(mode)
	if mode == ModeRemote {
		if _, err := s.remote.CheckStatus(ctx); err != nil {
			log.Printf("facade: remote status check failed: %v", err)
		}
	}
	return nil
}

func (s *Service) setModeValue(mode Mode) {
	s.modeMu.Lock()
	if s.mode == mode {
		s.modeMu.Unlock()
		return
	}
	s.mode = mode
	subs := make([]func(Mode), len(s.modeSubs))
	copy(subs, s.modeSubs)
	s.modeMu.Unlock()
	for _, fn := range subs {
		fn(mode)
	}
}

// SetRemoteURL persists and applies a new remote endpoint, then probes
// it.
func (s *Service) SetRemoteURL(ctx context.Context, session Session, url string) error {
	if err := s.require(session, rbac.ActionConfigure); err != nil {
		return err
	}
	url = strings.TrimSpace(url)
	if err := s.local.SetRemoteURL(ctx, url); err != nil {
		return fmt.Errorf("persist remote url: %w", err)
	}
	s.remote.SetBaseURL(url)
	if url != "" {
		if _, err := s.remote.CheckStatus(ctx); err != nil {
			log.Printf("facade: remote status check failed: %v", err)
		}
	}
	return nil
}

// ProvisionRemote asks a needs_setup remote to create its backing
// storage, then re-probes it.
func (s *Service) ProvisionRemote(ctx context.Context, session Session, name string) error {
	if err := s.require(session, rbac.ActionConfigure); err != nil {
		return err
	}
	if err := s.remote.Provision(ctx, name); err != nil {
		return fmt.Errorf("remote provision: %w", err)
	}
	_, err := s.remote.CheckStatus(ctx)
	return err
}

// AttachRemote points a needs_setup remote at existing backing storage.
func (s *Service) AttachRemote(ctx context.Context, session Session, id string) error {
	if err := s.require(session, rbac.ActionConfigure); err != nil {
		return err
	}
	if err := s.remote.Attach(ctx, id); err != nil {
		return fmt.Errorf("remote attach: %w", err)
	}
	_, err := s.remote.CheckStatus(ctx)
	return err
}

// ClearRemoteConfig detaches the remote's backing storage and forgets
// the configured base URL.
func (s *Service) ClearRemoteConfig(ctx context.Context, session Session) error {
	if err := s.require(session, rbac.ActionConfigure); err != nil {
		return err
	}
	if s.remote.BaseURL() != "" {
		if err := s.remote.ClearConfig(ctx); err != nil {
			log.Printf("facade: remote clearConfig failed: %v", err)
		}
	}
	return s.SetRemoteURL(ctx, session, "")
}

func (s *Service) require(session Session, action rbac.Action) error {
	if session.Email == "" {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required")
	}
	if !rbac.Can(rbac.Normalize(session.Role), action) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden")
	}
	return nil
}

// GetMaps returns every map visible to the principal, normalized. In
// remote mode a failing or superseded fetch falls back to the local
// copy; the read never surfaces a backend error.
func (s *Service) GetMaps(ctx context.Context, session Session) ([]hexmap.LearningMap, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	token := s.reads.begin("maps")
	if s.Mode() == ModeRemote {
		maps, err := s.remote.GetMaps(ctx, session.Email)
		switch {
		case err != nil:
			log.Printf("facade: remote getMaps failed, falling back to local: %v", err)
		case !s.reads.current("maps", token):
			log.Printf("facade: discarding superseded getMaps response")
		default:
			return normalizeAll(maps), nil
		}
	}
	maps, err := s.local.ListMaps(ctx)
	if err != nil {
		log.Printf("facade: local getMaps failed: %v", err)
		return []hexmap.LearningMap{}, nil
	}
	return normalizeAll(maps), nil
}

// GetStudentMaps returns the subset of maps assigned to the principal.
func (s *Service) GetStudentMaps(ctx context.Context, session Session) ([]hexmap.LearningMap, error) {
	maps, err := s.GetMaps(ctx, session)
	if err != nil {
		return nil, err
	}
	assigned, err := s.local.AssignedMapIDs(ctx, session.Email)
	if err != nil {
		log.Printf("facade: read assignments failed: %v", err)
		return []hexmap.LearningMap{}, nil
	}
	wanted := make(map[string]bool, len(assigned))
	for _, id := range assigned {
		wanted[id] = true
	}
	out := make([]hexmap.LearningMap, 0, len(assigned))
	for _, m := range maps {
		if wanted[m.MapID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetMapByID returns one normalized map, or nil when no such map
// exists anywhere.
func (s *Service) GetMapByID(ctx context.Context, session Session, mapID string) (*hexmap.LearningMap, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	key := "map:" + mapID
	token := s.reads.begin(key)
	if s.Mode() == ModeRemote {
		m, err := s.remote.GetMap(ctx, mapID)
		switch {
		case err != nil:
			log.Printf("facade: remote getMap %s failed, falling back to local: %v", mapID, err)
		case !s.reads.current(key, token):
			log.Printf("facade: discarding superseded getMap response for %s", mapID)
		case m == nil:
			return nil, nil
		default:
			normalized := hexmap.Normalize(*m)
			return &normalized, nil
		}
	}
	m, err := s.local.GetMap(ctx, mapID)
	if err != nil {
		log.Printf("facade: local getMap %s failed: %v", mapID, err)
		return nil, nil
	}
	if m == nil {
		return nil, nil
	}
	normalized := hexmap.Normalize(*m)
	return &normalized, nil
}

// SaveMap normalizes and upserts a whole map document, stamping
// meta.updatedAt. Saves to the same map are applied in issuance order;
// remote write failures are returned to the caller.
func (s *Service) SaveMap(ctx context.Context, session Session, m hexmap.LearningMap) (hexmap.LearningMap, error) {
	if err := s.require(session, rbac.ActionEdit); err != nil {
		return hexmap.LearningMap{}, err
	}

	m = hexmap.Normalize(m)
	if m.Title == "" {
		m.Title = hexmap.DefaultTitle
	}
	if m.MapID == "" {
		m.MapID = hexmap.NewMapID()
	}
	now := time.Now()
	m.Meta.UpdatedAt = &now
	m.Meta.UpdatedBy = session.Email
	if m.Meta.CreatedAt == nil {
		m.Meta.CreatedAt = &now
	}

	lock := s.saveLock(m.MapID)
	lock.Lock()
	defer lock.Unlock()

	if s.Mode() == ModeRemote {
		saved, err := s.remote.SaveMap(ctx, m)
		if err != nil {
			return hexmap.LearningMap{}, fmt.Errorf("remote save: %w", err)
		}
		saved = hexmap.Normalize(saved)
		// Mirror to the local store so remote outages still have data
		// to fall back to.
		if err := s.local.PutMap(ctx, saved); err != nil {
			log.Printf("facade: mirror save of %s failed: %v", saved.MapID, err)
		}
		return saved, nil
	}

	if err := s.local.PutMap(ctx, m); err != nil {
		return hexmap.LearningMap{}, fmt.Errorf("local save: %w", err)
	}
	return m, nil
}

func (s *Service) saveLock(mapID string) *sync.Mutex {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	lock, ok := s.saveLocks[mapID]
	if !ok {
		lock = &sync.Mutex{}
		s.saveLocks[mapID] = lock
	}
	return lock
}

// CreateMap constructs an empty map and saves it.
func (s *Service) CreateMap(ctx context.Context, session Session, title string) (hexmap.LearningMap, error) {
	if err := s.require(session, rbac.ActionCreate); err != nil {
		return hexmap.LearningMap{}, err
	}
	m := hexmap.NewMap(title, session.Email)
	m.TeacherEmail = session.Email
	return s.SaveMap(ctx, session, m)
}

// DuplicateMap deep-copies a map under a new id. Returns nil (no
// error) when the source does not exist.
func (s *Service) DuplicateMap(ctx context.Context, session Session, sourceID, newTitle string) (*hexmap.LearningMap, error) {
	if err := s.require(session, rbac.ActionCreate); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		dup, err := s.remote.DuplicateMap(ctx, sourceID, newTitle)
		if err != nil {
			return nil, fmt.Errorf("remote duplicate: %w", err)
		}
		if dup == nil {
			return nil, nil
		}
		normalized := hexmap.Normalize(*dup)
		if err := s.local.PutMap(ctx, normalized); err != nil {
			log.Printf("facade: mirror duplicate of %s failed: %v", normalized.MapID, err)
		}
		return &normalized, nil
	}
	src, err := s.GetMapByID(ctx, session, sourceID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}
	dup := hexmap.Duplicate(*src, newTitle, session.Email)
	saved, err := s.SaveMap(ctx, session, dup)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpdateStudentProgress upserts the principal's progress on one hex.
// This is a write: failures propagate.
func (s *Service) UpdateStudentProgress(ctx context.Context, session Session, mapID, hexID, status string, score *float64) error {
	if err := s.require(session, rbac.ActionProgress); err != nil {
		return err
	}
	if mapID == "" || hexID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mapId and hexId are required")
	}
	switch status {
	case hexmap.ProgressNotStarted, hexmap.ProgressInProgress, hexmap.ProgressCompleted, hexmap.ProgressMastered:
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown progress status %q", status))
	}

	rec := hexmap.ProgressRecord{
		Email:  session.Email,
		MapID:  mapID,
		HexID:  hexID,
		Status: status,
		Score:  score,
	}
	if status == hexmap.ProgressCompleted || status == hexmap.ProgressMastered {
		now := time.Now()
		rec.CompletedAt = &now
	}

	if s.Mode() == ModeRemote {
		if err := s.remote.UpdateProgress(ctx, rec); err != nil {
			return fmt.Errorf("remote progress update: %w", err)
		}
		if err := s.local.UpsertProgress(ctx, rec); err != nil {
			log.Printf("facade: mirror progress failed: %v", err)
		}
		return nil
	}
	return s.local.UpsertProgress(ctx, rec)
}

// GetProgressForUserAndMap returns the principal's progress records
// for one map, keyed by hexId.
func (s *Service) GetProgressForUserAndMap(ctx context.Context, session Session, mapID string) (map[string]hexmap.ProgressRecord, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		records, err := s.remote.GetStudentProgress(ctx, session.Email, mapID)
		if err == nil {
			if records == nil {
				records = map[string]hexmap.ProgressRecord{}
			}
			return records, nil
		}
		log.Printf("facade: remote getStudentProgress failed, falling back to local: %v", err)
	}
	records, err := s.local.ProgressForUserAndMap(ctx, session.Email, mapID)
	if err != nil {
		log.Printf("facade: local progress read failed: %v", err)
		return map[string]hexmap.ProgressRecord{}, nil
	}
	return records, nil
}

// AssignMapToClass grants every student in a class access to a map and
// returns how many students were granted.
func (s *Service) AssignMapToClass(ctx context.Context, session Session, mapID, classID string) (int, error) {
	if err := s.require(session, rbac.ActionAssign); err != nil {
		return 0, err
	}
	classes, err := s.GetClasses(ctx, session)
	if err != nil {
		return 0, err
	}
	for _, class := range classes {
		if class.ID == classID {
			return s.assign(ctx, session, mapID, class.StudentEmails)
		}
	}
	return 0, nil
}

// AssignMapToStudents grants explicit students access to a map.
// Invalid and duplicate emails are filtered, not errors; an empty list
// is a no-op returning zero.
func (s *Service) AssignMapToStudents(ctx context.Context, session Session, mapID string, emails []string) (int, error) {
	if err := s.require(session, rbac.ActionAssign); err != nil {
		return 0, err
	}
	return s.assign(ctx, session, mapID, emails)
}

func (s *Service) assign(ctx context.Context, session Session, mapID string, emails []string) (int, error) {
	valid := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.Contains(e, "@") || seen[e] {
			continue
		}
		seen[e] = true
		valid = append(valid, e)
	}
	if len(valid) == 0 || mapID == "" {
		return 0, nil
	}

	granted := 0
	if s.Mode() == ModeRemote {
		n, err := s.remote.AssignMap(ctx, mapID, "", valid)
		if err != nil {
			return 0, fmt.Errorf("remote assign: %w", err)
		}
		granted = n
		if _, err := s.local.Assign(ctx, mapID, valid); err != nil {
			log.Printf("facade: mirror assignment failed: %v", err)
		}
	} else {
		n, err := s.local.Assign(ctx, mapID, valid)
		if err != nil {
			return 0, fmt.Errorf("local assign: %w", err)
		}
		granted = n
	}

	if granted > 0 && s.mailer != nil && s.mailer.IsConfigured() {
		title := mapID
		if m, err := s.GetMapByID(ctx, session, mapID); err == nil && m != nil {
			title = m.Title
		}
		recipients := valid
		go func() {
			if err := s.mailer.NotifyAssignment(recipients, title, session.Email); err != nil {
				log.Printf("facade: assignment notification failed: %v", err)
			}
		}()
	}
	return granted, nil
}

// GetCourses returns course reference data from the active backend,
// the Postgres catalog, or built-in defaults, in that order.
func (s *Service) GetCourses(ctx context.Context, session Session) ([]hexmap.Course, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		if courses, err := s.remote.GetCourses(ctx); err == nil {
			return courses, nil
		} else {
			log.Printf("facade: remote getCourses failed, falling back: %v", err)
		}
	}
	if s.catalog != nil {
		if courses, err := s.catalog.Courses(ctx); err == nil && len(courses) > 0 {
			return courses, nil
		} else if err != nil {
			log.Printf("facade: catalog courses failed, falling back: %v", err)
		}
	}
	return store.DefaultCourses(), nil
}

// GetUnits returns unit reference data.
func (s *Service) GetUnits(ctx context.Context, session Session) ([]hexmap.Unit, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		if units, err := s.remote.GetUnits(ctx); err == nil {
			return units, nil
		} else {
			log.Printf("facade: remote getUnits failed, falling back: %v", err)
		}
	}
	if s.catalog != nil {
		if units, err := s.catalog.Units(ctx); err == nil && len(units) > 0 {
			return units, nil
		} else if err != nil {
			log.Printf("facade: catalog units failed, falling back: %v", err)
		}
	}
	return store.DefaultUnits(), nil
}

// GetClasses returns class rosters.
func (s *Service) GetClasses(ctx context.Context, session Session) ([]hexmap.ClassGroup, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		if classes, err := s.remote.GetClasses(ctx); err == nil {
			return classes, nil
		} else {
			log.Printf("facade: remote getClasses failed, falling back: %v", err)
		}
	}
	if s.catalog != nil {
		if classes, err := s.catalog.Classes(ctx); err == nil && len(classes) > 0 {
			return classes, nil
		} else if err != nil {
			log.Printf("facade: catalog classes failed, falling back: %v", err)
		}
	}
	return store.DefaultClasses(), nil
}

// GetHexTemplates returns the authoring palette.
func (s *Service) GetHexTemplates(ctx context.Context, session Session) ([]hexmap.HexTemplate, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.Mode() == ModeRemote {
		if templates, err := s.remote.GetHexTemplates(ctx); err == nil {
			return templates, nil
		} else {
			log.Printf("facade: remote getHexTemplates failed, falling back: %v", err)
		}
	}
	if s.catalog != nil {
		if templates, err := s.catalog.HexTemplates(ctx); err == nil && len(templates) > 0 {
			return templates, nil
		} else if err != nil {
			log.Printf("facade: catalog hex templates failed, falling back: %v", err)
		}
	}
	return store.DefaultHexTemplates(), nil
}

// GetCurriculumConfig returns the tagging vocabulary.
func (s *Service) GetCurriculumConfig(ctx context.Context, session Session) (hexmap.CurriculumConfig, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return hexmap.CurriculumConfig{}, err
	}
	if s.Mode() == ModeRemote {
		if cfg, err := s.remote.GetCurriculumConfig(ctx); err == nil && cfg != nil {
			return *cfg, nil
		} else if err != nil {
			log.Printf("facade: remote getCurriculumConfig failed, falling back: %v", err)
		}
	}
	if s.catalog != nil {
		if cfg, err := s.catalog.CurriculumConfig(ctx); err == nil && cfg != nil {
			return *cfg, nil
		} else if err != nil {
			log.Printf("facade: catalog curriculum config failed, falling back: %v", err)
		}
	}
	return store.DefaultCurriculumConfig(), nil
}

// GetCurrentUser resolves the principal: the remote's view when
// reachable in remote mode, otherwise the session itself.
func (s *Service) GetCurrentUser(ctx context.Context, session Session) (hexmap.User, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return hexmap.User{}, err
	}
	if s.Mode() == ModeRemote {
		if user, err := s.remote.GetCurrentUser(ctx); err == nil && user != nil {
			return *user, nil
		} else if err != nil {
			log.Printf("facade: remote getCurrentUser failed, falling back: %v", err)
		}
	}
	return hexmap.User{Email: session.Email, Name: session.Name, Role: string(rbac.Normalize(session.Role))}, nil
}

// MapAnalytics recomputes the coverage summary for one map.
func (s *Service) MapAnalytics(ctx context.Context, session Session, mapID string) (*analytics.Summary, error) {
	m, err := s.GetMapByID(ctx, session, mapID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	summary := analytics.Compute(*m)
	return &summary, nil
}

// GetDevTasks returns the developer task board. Dev tasks are local
// only, whatever the mode.
func (s *Service) GetDevTasks(ctx context.Context, session Session) ([]hexmap.DevTask, error) {
	if err := s.require(session, rbac.ActionView); err != nil {
		return nil, err
	}
	tasks, err := s.local.ListDevTasks(ctx)
	if err != nil {
		log.Printf("facade: dev tasks read failed: %v", err)
		return []hexmap.DevTask{}, nil
	}
	return tasks, nil
}

// SaveDevTasks replaces the developer task board, assigning ids to new
// entries.
func (s *Service) SaveDevTasks(ctx context.Context, session Session, tasks []hexmap.DevTask) ([]hexmap.DevTask, error) {
	if err := s.require(session, rbac.ActionEdit); err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = util.NewID("task")
		}
		if tasks[i].CreatedAt == nil {
			tasks[i].CreatedAt = &now
		}
	}
	if err := s.local.SaveDevTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("save dev tasks: %w", err)
	}
	return tasks, nil
}

// ExportMap serializes a map in the requested format ("sheet", "doc"
// or "pdf"). Export is local work regardless of backend mode.
func (s *Service) ExportMap(ctx context.Context, session Session, mapID, format string) (*export.Result, error) {
	m, err := s.GetMapByID(ctx, session, mapID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	switch format {
	case "sheet", "csv":
		return export.Sheet(*m)
	case "doc", "txt":
		return export.Doc(*m)
	case "pdf":
		return export.PDF(*m)
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "INVALID_FORMAT", fmt.Sprintf("unknown export format %q", format))
	}
}

func normalizeAll(maps []hexmap.LearningMap) []hexmap.LearningMap {
	out := make([]hexmap.LearningMap, len(maps))
	for i, m := range maps {
		out[i] = hexmap.Normalize(m)
	}
	return out
}
