package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"learningmap/api/internal/hexmap"
)

// ProgressKey is the unique key of a progress record within the
// progress collection.
func ProgressKey(email, mapID, hexID string) string {
	return email + "|" + mapID + "|" + hexID
}

// LocalStore is the browser-local persistence of the original product
// reimagined as a Redis key-value store: whole JSON collections under
// fixed keys, synchronous semantics, no cross-key transactions.
type LocalStore struct {
	client *redis.Client
	// Seed is called to produce the example map installed on first
	// access when the maps collection is empty. Nil disables seeding.
	Seed func() hexmap.LearningMap
}

// NewLocalStore connects to Redis and verifies the connection.
func NewLocalStore(redisURL string) (*LocalStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &LocalStore{client: client}, nil
}

// NewLocalStoreWithClient creates a store from an existing Redis client.
func NewLocalStoreWithClient(client *redis.Client) *LocalStore {
	return &LocalStore{client: client}
}

func (s *LocalStore) Close() error { return s.client.Close() }

// Ping checks if Redis is reachable.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Bootstrap installs the seed map when the maps collection is empty.
func (s *LocalStore) Bootstrap(ctx context.Context) error {
	if s.Seed == nil {
		return nil
	}
	maps, err := s.ListMaps(ctx)
	if err != nil {
		return err
	}
	if len(maps) > 0 {
		return nil
	}
	return s.PutMap(ctx, s.Seed())
}

// getCollection loads the JSON collection at key into out. A missing
// key leaves out at its zero value.
func (s *LocalStore) getCollection(ctx context.Context, key string, out any) error {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) putCollection(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ListMaps returns every stored map.
func (s *LocalStore) ListMaps(ctx context.Context) ([]hexmap.LearningMap, error) {
	var maps []hexmap.LearningMap
	if err := s.getCollection(ctx, KeyMaps, &maps); err != nil {
		return nil, err
	}
	return maps, nil
}

// GetMap returns the map with the given id, or nil when absent.
func (s *LocalStore) GetMap(ctx context.Context, mapID string) (*hexmap.LearningMap, error) {
	maps, err := s.ListMaps(ctx)
	if err != nil {
		return nil, err
	}
	for i := range maps {
		if maps[i].MapID == mapID {
			return &maps[i], nil
		}
	}
	return nil, nil
}

// PutMap upserts a map by mapId. The stored document is replaced
// whole; last write wins.
func (s *LocalStore) PutMap(ctx context.Context, m hexmap.LearningMap) error {
	maps, err := s.ListMaps(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range maps {
		if maps[i].MapID == m.MapID {
			maps[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		maps = append(maps, m)
	}
	return s.putCollection(ctx, KeyMaps, maps)
}

// Assignments returns the student-email -> mapIds roster.
func (s *LocalStore) Assignments(ctx context.Context) (map[string][]string, error) {
	roster := map[string][]string{}
	if err := s.getCollection(ctx, KeyAssignments, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// Assign grants the given students access to a map and returns how
// many of them were newly granted. Already-assigned students are
// skipped, not errors.
func (s *LocalStore) Assign(ctx context.Context, mapID string, emails []string) (int, error) {
	roster, err := s.Assignments(ctx)
	if err != nil {
		return 0, err
	}
	granted := 0
	for _, email := range emails {
		already := false
		for _, id := range roster[email] {
			if id == mapID {
				already = true
				break
			}
		}
		if already {
			continue
		}
		roster[email] = append(roster[email], mapID)
		granted++
	}
	if granted == 0 {
		return 0, nil
	}
	if err := s.putCollection(ctx, KeyAssignments, roster); err != nil {
		return 0, err
	}
	return granted, nil
}

// AssignedMapIDs returns the mapIds a student has access to.
func (s *LocalStore) AssignedMapIDs(ctx context.Context, email string) ([]string, error) {
	roster, err := s.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	return roster[email], nil
}

// UpsertProgress replaces the record for (email, mapId, hexId).
func (s *LocalStore) UpsertProgress(ctx context.Context, rec hexmap.ProgressRecord) error {
	records := map[string]hexmap.ProgressRecord{}
	if err := s.getCollection(ctx, KeyProgress, &records); err != nil {
		return err
	}
	records[ProgressKey(rec.Email, rec.MapID, rec.HexID)] = rec
	return s.putCollection(ctx, KeyProgress, records)
}

// ProgressForUserAndMap returns a student's records for one map,
// keyed by hexId.
func (s *LocalStore) ProgressForUserAndMap(ctx context.Context, email, mapID string) (map[string]hexmap.ProgressRecord, error) {
	records := map[string]hexmap.ProgressRecord{}
	if err := s.getCollection(ctx, KeyProgress, &records); err != nil {
		return nil, err
	}
	out := map[string]hexmap.ProgressRecord{}
	for _, rec := range records {
		if rec.Email == email && rec.MapID == mapID {
			out[rec.HexID] = rec
		}
	}
	return out, nil
}

// ListDevTasks returns the developer task board. Dev tasks are local
// by design and never routed to the remote backend.
func (s *LocalStore) ListDevTasks(ctx context.Context) ([]hexmap.DevTask, error) {
	var tasks []hexmap.DevTask
	if err := s.getCollection(ctx, KeyDevTasks, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveDevTasks replaces the task board.
func (s *LocalStore) SaveDevTasks(ctx context.Context, tasks []hexmap.DevTask) error {
	return s.putCollection(ctx, KeyDevTasks, tasks)
}

type localUser struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"passwordHash"`
}

// GetUser returns a local account by email, or nil.
func (s *LocalStore) GetUser(ctx context.Context, email string) (*hexmap.User, string, error) {
	users := map[string]localUser{}
	if err := s.getCollection(ctx, KeyUsers, &users); err != nil {
		return nil, "", err
	}
	u, ok := users[email]
	if !ok {
		return nil, "", nil
	}
	return &hexmap.User{Email: u.Email, Name: u.Name, Role: u.Role}, u.PasswordHash, nil
}

// PutUser upserts a local account.
func (s *LocalStore) PutUser(ctx context.Context, user hexmap.User, passwordHash string) error {
	users := map[string]localUser{}
	if err := s.getCollection(ctx, KeyUsers, &users); err != nil {
		return err
	}
	users[user.Email] = localUser{
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		PasswordHash: passwordHash,
	}
	return s.putCollection(ctx, KeyUsers, users)
}

// GetMode returns the persisted backend mode, or "" if never set.
func (s *LocalStore) GetMode(ctx context.Context) (string, error) {
	mode, err := s.client.Get(ctx, KeyMode).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", KeyMode, err)
	}
	return mode, nil
}

// SetMode persists the backend mode across restarts.
func (s *LocalStore) SetMode(ctx context.Context, mode string) error {
	if err := s.client.Set(ctx, KeyMode, mode, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", KeyMode, err)
	}
	return nil
}

// GetRemoteURL returns the persisted remote base URL, or "".
func (s *LocalStore) GetRemoteURL(ctx context.Context) (string, error) {
	url, err := s.client.Get(ctx, KeyRemoteURL).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", KeyRemoteURL, err)
	}
	return url, nil
}

// SetRemoteURL persists the remote base URL across restarts.
func (s *LocalStore) SetRemoteURL(ctx context.Context, url string) error {
	if err := s.client.Set(ctx, KeyRemoteURL, url, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", KeyRemoteURL, err)
	}
	return nil
}
