package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"learningmap/api/internal/hexmap"
)

// ConnState is the remote client's connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateNeedsSetup   ConnState = "needs_setup"
	StateError        ConnState = "error"
)

// Remote endpoint actions. Every request is multiplexed through one
// base URL plus an action query parameter.
const (
	actionStatus              = "status"
	actionCreate              = "create"
	actionAttach              = "attach"
	actionClearConfig         = "clearConfig"
	actionGetMaps             = "getMaps"
	actionGetMap              = "getMap"
	actionSaveMap             = "saveMap"
	actionDuplicateMap        = "duplicateMap"
	actionUpdateProgress      = "updateProgress"
	actionGetStudentProgress  = "getStudentProgress"
	actionGetCourses          = "getCourses"
	actionGetUnits            = "getUnits"
	actionGetClasses          = "getClasses"
	actionGetHexTemplates     = "getHexTemplates"
	actionGetCurriculumConfig = "getCurriculumConfig"
	actionGetCurrentUser      = "getCurrentUser"
	actionAssignMap           = "assignMap"
)

// ErrRemoteNotConfigured is returned when no base URL has been set.
var ErrRemoteNotConfigured = errors.New("remote base url not configured")

// envelope is the common part of every remote response.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Status is the decoded status action response.
type Status struct {
	Configured      bool   `json:"configured"`
	NeedsSetup      bool   `json:"needsSetup"`
	SchemaVersion   string `json:"schemaVersion,omitempty"`
	SpreadsheetName string `json:"spreadsheetName,omitempty"`
}

// RemoteClient is a thin typed client over the remote action-dispatch
// endpoint. Transport and envelope failures are reported as ordinary
// errors; the client never panics on malformed responses.
type RemoteClient struct {
	httpClient *http.Client

	mu          sync.Mutex
	baseURL     string
	state       ConnState
	subscribers []func(ConnState)
}

// NewRemoteClient creates a client. baseURL may be empty and set later
// via SetBaseURL.
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		state:      StateDisconnected,
	}
}

// BaseURL returns the current endpoint.
func (c *RemoteClient) BaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURL
}

// SetBaseURL swaps the endpoint and resets the connection state.
func (c *RemoteClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = baseURL
	c.mu.Unlock()
	c.setState(StateDisconnected)
}

// State returns the current connection state.
func (c *RemoteClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a listener invoked on every state change.
func (c *RemoteClient) Subscribe(fn func(ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *RemoteClient) setState(next ConnState) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	subs := make([]func(ConnState), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
}

// CheckStatus probes the endpoint and drives the state machine:
// connecting, then connected, needs_setup or error.
func (c *RemoteClient) CheckStatus(ctx context.Context) (Status, error) {
	c.setState(StateConnecting)

	var resp struct {
		envelope
		Status
	}
	if err := c.get(ctx, actionStatus, nil, &resp); err != nil {
		c.setState(StateError)
		return Status{}, err
	}
	if resp.NeedsSetup || !resp.Configured {
		c.setState(StateNeedsSetup)
	} else {
		c.setState(StateConnected)
	}
	return resp.Status, nil
}

// Provision runs the create action, provisioning the remote backing
// store, then re-checks status.
func (c *RemoteClient) Provision(ctx context.Context, name string) error {
	var resp envelope
	if err := c.post(ctx, actionCreate, map[string]string{"name": name}, &resp); err != nil {
		return err
	}
	_, err := c.CheckStatus(ctx)
	return err
}

// Attach binds the remote endpoint to an existing backing store.
func (c *RemoteClient) Attach(ctx context.Context, id string) error {
	var resp envelope
	if err := c.post(ctx, actionAttach, map[string]string{"id": id}, &resp); err != nil {
		return err
	}
	_, err := c.CheckStatus(ctx)
	return err
}

// ClearConfig detaches the remote backing store.
func (c *RemoteClient) ClearConfig(ctx context.Context) error {
	var resp envelope
	if err := c.post(ctx, actionClearConfig, nil, &resp); err != nil {
		return err
	}
	c.setState(StateNeedsSetup)
	return nil
}

// GetMaps fetches all maps visible to the calling principal.
func (c *RemoteClient) GetMaps(ctx context.Context, email string) ([]hexmap.LearningMap, error) {
	var resp struct {
		envelope
		Maps []hexmap.LearningMap `json:"maps"`
	}
	params := url.Values{}
	if email != "" {
		params.Set("email", email)
	}
	if err := c.get(ctx, actionGetMaps, params, &resp); err != nil {
		return nil, err
	}
	return resp.Maps, nil
}

// GetMap fetches one map, nil when the remote has no such id.
func (c *RemoteClient) GetMap(ctx context.Context, mapID string) (*hexmap.LearningMap, error) {
	var resp struct {
		envelope
		Map *hexmap.LearningMap `json:"map"`
	}
	params := url.Values{"mapId": {mapID}}
	if err := c.get(ctx, actionGetMap, params, &resp); err != nil {
		if resp.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return resp.Map, nil
}

// SaveMap upserts a map document whole; the remote's copy of the
// saved map is returned (it may assign the mapId).
func (c *RemoteClient) SaveMap(ctx context.Context, m hexmap.LearningMap) (hexmap.LearningMap, error) {
	var resp struct {
		envelope
		Map *hexmap.LearningMap `json:"map"`
	}
	if err := c.post(ctx, actionSaveMap, m, &resp); err != nil {
		return hexmap.LearningMap{}, err
	}
	if resp.Map == nil {
		return m, nil
	}
	return *resp.Map, nil
}

// DuplicateMap asks the remote to copy a map.
func (c *RemoteClient) DuplicateMap(ctx context.Context, sourceID, newTitle string) (*hexmap.LearningMap, error) {
	var resp struct {
		envelope
		Map *hexmap.LearningMap `json:"map"`
	}
	body := map[string]string{"sourceId": sourceID, "newTitle": newTitle}
	if err := c.post(ctx, actionDuplicateMap, body, &resp); err != nil {
		return nil, err
	}
	return resp.Map, nil
}

// UpdateProgress upserts a student progress record.
func (c *RemoteClient) UpdateProgress(ctx context.Context, rec hexmap.ProgressRecord) error {
	var resp envelope
	return c.post(ctx, actionUpdateProgress, rec, &resp)
}

// GetStudentProgress fetches one student's records for one map,
// keyed by hexId.
func (c *RemoteClient) GetStudentProgress(ctx context.Context, email, mapID string) (map[string]hexmap.ProgressRecord, error) {
	var resp struct {
		envelope
		Progress map[string]hexmap.ProgressRecord `json:"progress"`
	}
	params := url.Values{"email": {email}, "mapId": {mapID}}
	if err := c.get(ctx, actionGetStudentProgress, params, &resp); err != nil {
		return nil, err
	}
	return resp.Progress, nil
}

// AssignMap grants students access to a map, by class or explicit
// email list, and returns the number granted.
func (c *RemoteClient) AssignMap(ctx context.Context, mapID, classID string, emails []string) (int, error) {
	var resp struct {
		envelope
		Granted int `json:"granted"`
	}
	body := map[string]any{"mapId": mapID, "classId": classID, "emails": emails}
	if err := c.post(ctx, actionAssignMap, body, &resp); err != nil {
		return 0, err
	}
	return resp.Granted, nil
}

// GetCourses fetches course reference data.
func (c *RemoteClient) GetCourses(ctx context.Context) ([]hexmap.Course, error) {
	var resp struct {
		envelope
		Courses []hexmap.Course `json:"courses"`
	}
	if err := c.get(ctx, actionGetCourses, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

// GetUnits fetches unit reference data.
func (c *RemoteClient) GetUnits(ctx context.Context) ([]hexmap.Unit, error) {
	var resp struct {
		envelope
		Units []hexmap.Unit `json:"units"`
	}
	if err := c.get(ctx, actionGetUnits, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Units, nil
}

// GetClasses fetches class rosters.
func (c *RemoteClient) GetClasses(ctx context.Context) ([]hexmap.ClassGroup, error) {
	var resp struct {
		envelope
		Classes []hexmap.ClassGroup `json:"classes"`
	}
	if err := c.get(ctx, actionGetClasses, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Classes, nil
}

// GetHexTemplates fetches the authoring palette.
func (c *RemoteClient) GetHexTemplates(ctx context.Context) ([]hexmap.HexTemplate, error) {
	var resp struct {
		envelope
		Templates []hexmap.HexTemplate `json:"templates"`
	}
	if err := c.get(ctx, actionGetHexTemplates, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

// GetCurriculumConfig fetches the tagging vocabulary.
func (c *RemoteClient) GetCurriculumConfig(ctx context.Context) (*hexmap.CurriculumConfig, error) {
	var resp struct {
		envelope
		Config *hexmap.CurriculumConfig `json:"config"`
	}
	if err := c.get(ctx, actionGetCurriculumConfig, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// GetCurrentUser resolves the remote's view of the calling principal.
func (c *RemoteClient) GetCurrentUser(ctx context.Context) (*hexmap.User, error) {
	var resp struct {
		envelope
		User *hexmap.User `json:"user"`
	}
	if err := c.get(ctx, actionGetCurrentUser, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *RemoteClient) get(ctx context.Context, action string, params url.Values, out any) error {
	target, err := c.requestURL(action, params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	return c.do(req, action, out)
}

func (c *RemoteClient) post(ctx context.Context, action string, body any, out any) error {
	target, err := c.requestURL(action, nil)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", action, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, action, out)
}

func (c *RemoteClient) requestURL(action string, params url.Values) (string, error) {
	base := c.BaseURL()
	if base == "" {
		return "", ErrRemoteNotConfigured
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid remote base url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do executes the request and decodes the response envelope. out must
// embed envelope (or be *envelope) so success can be checked.
func (c *RemoteClient) do(req *http.Request, action string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("%s read response: %w", action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s decode response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && !env.Success {
		if env.Error == "" {
			env.Error = "remote reported failure"
		}
		return fmt.Errorf("%s: %s", action, env.Error)
	}
	return nil
}
