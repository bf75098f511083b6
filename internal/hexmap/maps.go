package hexmap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTitle is used when a map is saved without one.
const DefaultTitle = "Untitled Map"

// NewMapID generates a map id following the map-<millis> convention,
// with a short random suffix so two maps created in the same
// millisecond do not collide.
func NewMapID() string {
	return fmt.Sprintf("map-%d-%s", time.Now().UnixMilli(), randHex(3))
}

// NewHexID generates a unique hex id.
func NewHexID() string {
	return "hex-" + randHex(8)
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewMap constructs an empty, normalized map owned by createdBy.
func NewMap(title, createdBy string) LearningMap {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	return Normalize(LearningMap{
		MapID: NewMapID(),
		Title: title,
		Meta: MapMeta{
			CreatedAt: &now,
			CreatedBy: createdBy,
		},
	})
}

// Duplicate deep-copies src into a new map with a fresh mapId and
// fresh hex ids. Connections between copied hexes are re-targeted to
// the new ids; edges pointing outside the map are dropped. The copy
// records its origin in meta.basedOnMapId.
func Duplicate(src LearningMap, newTitle, createdBy string) LearningMap {
	out := Normalize(src)
	out.MapID = NewMapID()
	if newTitle != "" {
		out.Title = newTitle
	} else {
		out.Title = src.Title + " (Copy)"
	}
	now := time.Now()
	out.Meta = MapMeta{
		CreatedAt:    &now,
		CreatedBy:    createdBy,
		BasedOnMapID: src.MapID,
	}

	idMap := make(map[string]string, len(out.Hexes))
	for i := range out.Hexes {
		fresh := NewHexID()
		idMap[out.Hexes[i].ID] = fresh
		out.Hexes[i].ID = fresh
	}
	for i := range out.Hexes {
		kept := out.Hexes[i].Connections[:0]
		for _, c := range out.Hexes[i].Connections {
			if target, ok := idMap[c.TargetHexID]; ok {
				c.TargetHexID = target
				kept = append(kept, c)
			}
		}
		out.Hexes[i].Connections = kept
	}
	return out
}

// SetCourse changes the map's course and clears the unit whenever the
// course actually changes, so the unit always belongs to the current
// course.
func (m *LearningMap) SetCourse(courseID string) {
	if m.CourseID == courseID {
		return
	}
	m.CourseID = courseID
	m.UnitID = ""
}

// AddHex appends a normalized copy of h, assigning an id if absent,
// and returns the id.
func (m *LearningMap) AddHex(h Hex) string {
	if h.ID == "" {
		h.ID = NewHexID()
	}
	if h.Progress == "" {
		h.Progress = ProgressNotStarted
	}
	m.Hexes = append(m.Hexes, NormalizeHex(h))
	return h.ID
}

// FindHex returns a pointer into the map's hex slice, or nil.
func (m *LearningMap) FindHex(id string) *Hex {
	for i := range m.Hexes {
		if m.Hexes[i].ID == id {
			return &m.Hexes[i]
		}
	}
	return nil
}

// UpdateHex replaces the hex with h.ID by a normalized copy of h.
// Returns false if no such hex exists.
func (m *LearningMap) UpdateHex(h Hex) bool {
	for i := range m.Hexes {
		if m.Hexes[i].ID == h.ID {
			m.Hexes[i] = NormalizeHex(h)
			return true
		}
	}
	return false
}

// MoveHex sets the grid position of a hex. Overlap with other hexes is
// allowed.
func (m *LearningMap) MoveHex(id string, row, col int) bool {
	h := m.FindHex(id)
	if h == nil {
		return false
	}
	h.Row = row
	h.Col = col
	return true
}

// RemoveHex deletes a hex and every edge pointing at it.
func (m *LearningMap) RemoveHex(id string) bool {
	idx := -1
	for i := range m.Hexes {
		if m.Hexes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	m.Hexes = append(m.Hexes[:idx], m.Hexes[idx+1:]...)
	for i := range m.Hexes {
		kept := m.Hexes[i].Connections[:0]
		for _, c := range m.Hexes[i].Connections {
			if c.TargetHexID != id {
				kept = append(kept, c)
			}
		}
		m.Hexes[i].Connections = kept
	}
	return true
}

// Connect adds a directed edge fromID -> toID. Self-loops and a second
// edge to the same target are rejected; missing hexes make the call a
// no-op. Returns true only when an edge was added.
func (m *LearningMap) Connect(fromID, toID, connType, label string) bool {
	if fromID == toID || toID == "" {
		return false
	}
	from := m.FindHex(fromID)
	if from == nil || m.FindHex(toID) == nil {
		return false
	}
	for _, c := range from.Connections {
		if c.TargetHexID == toID {
			return false
		}
	}
	if connType == "" {
		connType = ConnDefault
	}
	from.Connections = append(from.Connections, Connection{
		TargetHexID: toID,
		Type:        connType,
		Label:       label,
	})
	return true
}

// Disconnect removes the edge fromID -> toID if present.
func (m *LearningMap) Disconnect(fromID, toID string) bool {
	from := m.FindHex(fromID)
	if from == nil {
		return false
	}
	for i, c := range from.Connections {
		if c.TargetHexID == toID {
			from.Connections = append(from.Connections[:i], from.Connections[i+1:]...)
			return true
		}
	}
	return false
}

// Bounds returns the grid extent (max row and col plus margin) used by
// renderers to size the board.
func (m *LearningMap) Bounds(margin int) (rows, cols int) {
	for _, h := range m.Hexes {
		if h.Row > rows {
			rows = h.Row
		}
		if h.Col > cols {
			cols = h.Col
		}
	}
	return rows + margin, cols + margin
}
