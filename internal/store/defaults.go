package store

import "learningmap/api/internal/hexmap"

// Built-in reference data served when neither the remote backend nor
// the Postgres catalog is available. Mirrors the mock data the product
// ships for first-run exploration.

func DefaultCourses() []hexmap.Course {
	return []hexmap.Course{
		{ID: "course-sci-7", Name: "Science 7", Subject: "Science"},
		{ID: "course-math-7", Name: "Mathematics 7", Subject: "Mathematics"},
		{ID: "course-eng-7", Name: "English 7", Subject: "English"},
	}
}

func DefaultUnits() []hexmap.Unit {
	return []hexmap.Unit{
		{ID: "unit-cells", CourseID: "course-sci-7", Name: "Cells and Systems"},
		{ID: "unit-forces", CourseID: "course-sci-7", Name: "Forces and Motion"},
		{ID: "unit-fractions", CourseID: "course-math-7", Name: "Fractions and Ratios"},
		{ID: "unit-narrative", CourseID: "course-eng-7", Name: "Narrative Writing"},
	}
}

func DefaultClasses() []hexmap.ClassGroup {
	return []hexmap.ClassGroup{
		{ID: "class-7a", Name: "7A", StudentEmails: []string{
			"amara@students.example.org",
			"ben@students.example.org",
			"chen@students.example.org",
		}},
		{ID: "class-7b", Name: "7B", StudentEmails: []string{
			"dana@students.example.org",
			"eli@students.example.org",
		}},
	}
}

func DefaultHexTemplates() []hexmap.HexTemplate {
	return []hexmap.HexTemplate{
		{ID: "tpl-lesson", Label: "Lesson", Icon: "book", Type: hexmap.HexTypeCore},
		{ID: "tpl-practice", Label: "Practice", Icon: "pencil", Type: hexmap.HexTypeCore},
		{ID: "tpl-extension", Label: "Extension", Icon: "rocket", Type: hexmap.HexTypeExt},
		{ID: "tpl-support", Label: "Support", Icon: "hand", Type: hexmap.HexTypeScaf},
		{ID: "tpl-checkpoint", Label: "Checkpoint", Icon: "flag", Type: hexmap.HexTypeClass},
	}
}

func DefaultCurriculumConfig() hexmap.CurriculumConfig {
	return hexmap.CurriculumConfig{
		SBARDomains:  []string{"KU", "TT", "C"},
		Standards:    []string{"7.SCI.1", "7.SCI.2", "7.MATH.1", "7.ENG.1"},
		ATLSkills:    []string{"Critical thinking", "Collaboration", "Self-management", "Research"},
		Competencies: []string{"Communication", "Inquiry", "Problem solving"},
		Tags:         []string{"lab", "project", "assessment", "review"},
	}
}

// DefaultSeedMap is the example map installed on first access when the
// local maps collection is empty.
func DefaultSeedMap() hexmap.LearningMap {
	m := hexmap.NewMap("Getting Started", "")
	m.Meta.Description = "A small example map showing core, extension and scaffold hexes."

	start := m.AddHex(hexmap.Hex{
		Label: "Welcome", Icon: "star", Type: hexmap.HexTypeCore, Row: 1, Col: 1,
		Curriculum: &hexmap.HexCurriculum{SBARDomains: []string{"KU"}},
	})
	practice := m.AddHex(hexmap.Hex{
		Label: "First Practice", Icon: "pencil", Type: hexmap.HexTypeCore, Row: 1, Col: 2,
		LinkURL:    "https://example.org/practice",
		Curriculum: &hexmap.HexCurriculum{SBARDomains: []string{"TT"}, Standards: []string{"7.SCI.1"}},
	})
	stretch := m.AddHex(hexmap.Hex{
		Label: "Stretch Goal", Icon: "rocket", Type: hexmap.HexTypeExt, Row: 2, Col: 2,
	})
	m.Connect(start, practice, hexmap.ConnDefault, "")
	m.Connect(practice, stretch, hexmap.ConnExtension, "if finished early")
	return m
}
