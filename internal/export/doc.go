package export

import (
	"fmt"
	"strings"

	"learningmap/api/internal/hexmap"
)

// Doc serializes a map into a plain-text curriculum outline: unit
// planning fields first, then every hex with its tagging.
func Doc(m hexmap.LearningMap) (*Result, error) {
	m = hexmap.Normalize(m)

	var b strings.Builder
	title := m.Title
	if title == "" {
		title = hexmap.DefaultTitle
	}
	fmt.Fprintf(&b, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	if m.Meta.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Meta.Description)
	}
	if m.CourseID != "" {
		fmt.Fprintf(&b, "Course: %s\n", m.CourseID)
	}
	if m.UnitID != "" {
		fmt.Fprintf(&b, "Unit: %s\n", m.UnitID)
	}
	if m.TeacherEmail != "" {
		fmt.Fprintf(&b, "Teacher: %s\n", m.TeacherEmail)
	}
	b.WriteString("\n")

	if u := m.UbdData; u != nil {
		b.WriteString("Unit Plan (UbD)\n---------------\n")
		writeField(&b, "Big Idea", u.BigIdea)
		for i, q := range u.EssentialQuestions {
			writeField(&b, fmt.Sprintf("Essential Question %d", i+1), q)
		}
		writeField(&b, "Assessment", u.Assessment)
		writeField(&b, "Stage 1 - Understandings", u.Stage1Understandings)
		writeField(&b, "Stage 1 - Knowledge & Skills", u.Stage1KnowledgeSkills)
		writeField(&b, "Stage 2 - Evidence", u.Stage2Evidence)
		writeField(&b, "Stage 3 - Learning Plan", u.Stage3Plan)
		writeField(&b, "UDL Notes", u.UDLNotes)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Activities (%d)\n--------------\n", len(m.Hexes))
	for _, h := range m.Hexes {
		label := h.Label
		if label == "" {
			label = h.ID
		}
		fmt.Fprintf(&b, "\n* %s [%s] (row %d, col %d)\n", label, h.Type, h.Row, h.Col)
		if h.LinkURL != "" {
			fmt.Fprintf(&b, "  Resource: %s\n", h.LinkURL)
		}
		writeTagLine(&b, "SBAR", h.Curriculum.SBARDomains)
		writeTagLine(&b, "Standards", h.Curriculum.Standards)
		writeTagLine(&b, "ATL Skills", h.Curriculum.ATLSkills)
		writeTagLine(&b, "Competencies", h.Curriculum.Competencies)
		writeTagLine(&b, "Tags", h.Curriculum.Tags)
		for _, c := range h.Connections {
			target := c.TargetHexID
			if t := m.FindHex(c.TargetHexID); t != nil && t.Label != "" {
				target = t.Label
			}
			if c.Label != "" {
				fmt.Fprintf(&b, "  -> %s (%s: %s)\n", target, c.Type, c.Label)
			} else {
				fmt.Fprintf(&b, "  -> %s (%s)\n", target, c.Type)
			}
		}
	}

	return &Result{
		Data:     []byte(b.String()),
		Filename: sanitizeFilename(title) + ".txt",
		MimeType: "text/plain; charset=utf-8",
	}, nil
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func writeTagLine(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, strings.Join(values, ", "))
}
