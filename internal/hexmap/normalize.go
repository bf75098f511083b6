package hexmap

// Normalize returns a deep copy of m in canonical shape: the hex slice
// exists, every hex carries a curriculum object whose tag slices and
// UDL lists are all non-nil, and meta is present. Connections are
// copied as-is; edge invariants are enforced by Connect, not here.
// Normalize is idempotent and never mutates its input.
func Normalize(m LearningMap) LearningMap {
	out := m
	out.Meta = m.Meta
	out.UbdData = copyUbdData(m.UbdData)

	out.Hexes = make([]Hex, len(m.Hexes))
	for i, h := range m.Hexes {
		out.Hexes[i] = normalizeHex(h)
	}
	return out
}

// NormalizeHex returns a deep copy of h with a fully populated
// curriculum sub-structure.
func NormalizeHex(h Hex) Hex {
	return normalizeHex(h)
}

func normalizeHex(h Hex) Hex {
	out := h
	out.Curriculum = normalizeCurriculum(h.Curriculum)
	out.Connections = make([]Connection, len(h.Connections))
	copy(out.Connections, h.Connections)
	return out
}

func normalizeCurriculum(c *HexCurriculum) *HexCurriculum {
	out := &HexCurriculum{}
	if c != nil {
		*out = *c
	}
	out.SBARDomains = copyStrings(out.SBARDomains)
	out.Standards = copyStrings(out.Standards)
	out.ATLSkills = copyStrings(out.ATLSkills)
	out.Competencies = copyStrings(out.Competencies)
	out.Tags = copyStrings(out.Tags)
	out.UbDTags = copyStrings(out.UbDTags)
	out.UDL = UDL{
		Representation:   copyStrings(out.UDL.Representation),
		ActionExpression: copyStrings(out.UDL.ActionExpression),
		Engagement:       copyStrings(out.UDL.Engagement),
	}
	return out
}

func copyUbdData(u *UbdData) *UbdData {
	if u == nil {
		return nil
	}
	out := *u
	if u.EssentialQuestions != nil {
		out.EssentialQuestions = copyStrings(u.EssentialQuestions)
	}
	return &out
}

// copyStrings never returns nil; a missing list becomes an empty one.
func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
