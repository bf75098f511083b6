// Package hexmap defines the learning-map document model and the
// operations that keep it well formed.
package hexmap

import "time"

// Hex types. Unknown type strings are tolerated downstream, these are
// the five the product knows how to render.
const (
	HexTypeCore    = "core"
	HexTypeExt     = "ext"
	HexTypeScaf    = "scaf"
	HexTypeStudent = "student"
	HexTypeClass   = "class"
)

// Hex status values, independent of per-student progress.
const (
	HexStatusLocked    = "locked"
	HexStatusCompleted = "completed"
)

// Hex sizes.
const (
	HexSizeLarge = "large"
	HexSizeSmall = "small"
)

// Per-student progress states.
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressMastered   = "mastered"
)

// Connection types.
const (
	ConnDefault     = "default"
	ConnConditional = "conditional"
	ConnRemedial    = "remedial"
	ConnExtension   = "extension"
)

// Connection is a directed edge from the owning hex to TargetHexID.
type Connection struct {
	TargetHexID string `json:"targetHexId"`
	Type        string `json:"type"`
	Label       string `json:"label,omitempty"`
}

// UDL holds Universal Design for Learning tags, one list per principle.
type UDL struct {
	Representation   []string `json:"representation"`
	ActionExpression []string `json:"actionExpression"`
	Engagement       []string `json:"engagement"`
}

// HexCurriculum carries the curriculum tagging of a hex. After
// Normalize every slice is non-nil and the UDL object is present.
type HexCurriculum struct {
	SBARDomains  []string `json:"sbarDomains"`
	Standards    []string `json:"standards"`
	ATLSkills    []string `json:"atlSkills"`
	Competencies []string `json:"competencies"`
	Tags         []string `json:"tags"`
	UbDTags      []string `json:"ubdTags"`
	UDL          UDL      `json:"udl"`
}

// Hex is one node in the learning-map graph.
type Hex struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Icon        string         `json:"icon,omitempty"`
	Type        string         `json:"type"`
	Status      string         `json:"status,omitempty"`
	Size        string         `json:"size,omitempty"`
	Row         int            `json:"row"`
	Col         int            `json:"col"`
	LinkURL     string         `json:"linkUrl,omitempty"`
	Progress    string         `json:"progress,omitempty"`
	Curriculum  *HexCurriculum `json:"curriculum"`
	Connections []Connection   `json:"connections"`
}

// UbdData holds the free-text Understanding by Design planning fields.
// No shape invariant is enforced beyond "present or absent".
type UbdData struct {
	BigIdea                string   `json:"bigIdea,omitempty"`
	EssentialQuestions     []string `json:"essentialQuestions,omitempty"`
	Assessment             string   `json:"assessment,omitempty"`
	Stage1Understandings   string   `json:"stage1_understandings,omitempty"`
	Stage1KnowledgeSkills  string   `json:"stage1_knowledge_skills,omitempty"`
	Stage2Evidence         string   `json:"stage2_evidence,omitempty"`
	Stage3Plan             string   `json:"stage3_plan,omitempty"`
	UDLNotes               string   `json:"udl_notes,omitempty"`
}

// MapMeta is bookkeeping attached to every map.
type MapMeta struct {
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	CreatedBy    string     `json:"createdBy,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy    string     `json:"updatedBy,omitempty"`
	Description  string     `json:"description,omitempty"`
	BasedOnMapID string     `json:"basedOnMapId,omitempty"`
}

/// LearningMap is the aggregate root: a titled set of hexes plus
// curriculum planning data.
type LearningMap struct {
	MapID        string   `json:"mapId"`
	Title        string   `json:"title"`
	CourseID     string   `json:"courseId,omitempty"`
	UnitID       string   `json:"unitId,omitempty"`
	Hexes        []Hex    `json:"hexes"`
	TeacherEmail string   `json:"teacherEmail,omitempty"`
	UbdData      *UbdData `json:"ubdData,omitempty"`
	Meta         MapMeta  `json:"meta"`
}

// ProgressRecord tracks one student's progress on one hex. Uniquely
// keyed by (email, mapId, hexId); upserts replace the prior record.
type ProgressRecord struct {
	Email       string     `json:"email"`
	MapID       string     `json:"mapId"`
	HexID       string     `json:"hexId"`
	Status      string     `json:"status"`
	Score       *float64   `json:"score,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Course is read-mostly reference data.
type Course struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
}

// Unit belongs to a course.
type Unit struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Name     string `json:"name"`
}

// ClassGroup is a roster of student emails.
type ClassGroup struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	StudentEmails []string `json:"studentEmails"`
}

// HexTemplate is a prefab hex offered by the authoring palette.
type HexTemplate struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Icon       string         `json:"icon,omitempty"`
	Type       string         `json:"type"`
	Curriculum *HexCurriculum `json:"curriculum,omitempty"`
}

// CurriculumConfig is the tagging vocabulary offered by the editor.
type CurriculumConfig struct {
	SBARDomains  []string `json:"sbarDomains"`
	Standards    []string `json:"standards"`
	ATLSkills    []string `json:"atlSkills"`
	Competencies []string `json:"competencies"`
	Tags         []string `json:"tags"`
}

// DevTask is an entry on the local-only developer task board.
type DevTask struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// User is the resolved principal supplied by the identity layer.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
