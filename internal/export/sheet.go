package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"learningmap/api/internal/hexmap"
)

// Sheet serializes a map's hexes into a CSV workbook, one row per hex
// with curriculum tagging flattened into semicolon-joined cells.
func Sheet(m hexmap.LearningMap) (*Result, error) {
	m = hexmap.Normalize(m)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Hex ID", "Label", "Type", "Status", "Row", "Col", "Link",
		"SBAR Domains", "Standards", "ATL Skills", "Competencies", "Tags", "UbD Tags",
		"Connections",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, h := range m.Hexes {
		conns := make([]string, 0, len(h.Connections))
		for _, c := range h.Connections {
			conns = append(conns, c.TargetHexID+" ("+c.Type+")")
		}
		row := []string{
			h.ID,
			h.Label,
			h.Type,
			h.Status,
			fmt.Sprintf("%d", h.Row),
			fmt.Sprintf("%d", h.Col),
			h.LinkURL,
			strings.Join(h.Curriculum.SBARDomains, "; "),
			strings.Join(h.Curriculum.Standards, "; "),
			strings.Join(h.Curriculum.ATLSkills, "; "),
			strings.Join(h.Curriculum.Competencies, "; "),
			strings.Join(h.Curriculum.Tags, "; "),
			strings.Join(h.Curriculum.UbDTags, "; "),
			strings.Join(conns, "; "),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write hex %s: %w", h.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(m.Title) + ".csv",
		MimeType: "text/csv",
	}, nil
}
