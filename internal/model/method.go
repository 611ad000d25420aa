package model

// MethodCategory is the public detection-method vocabulary. Raw agency
// codes are single letters; the closed table below is the only mapping
// between the two, in both directions.
type MethodCategory string

const (
	MethodRadar     MethodCategory = "radar"
	MethodLaser     MethodCategory = "laser"
	MethodVascar    MethodCategory = "vascar"
	MethodPatrol    MethodCategory = "patrol"
	MethodAutomated MethodCategory = "automated"
	MethodUnknown   MethodCategory = "unknown"
)

var methodCodes = map[MethodCategory][]string{
	MethodRadar:     {"E", "F", "G", "H", "I", "J"},
	MethodLaser:     {"Q", "R"},
	MethodVascar:    {"C", "D"},
	MethodPatrol:    {"A", "B", "L", "M", "N", "O", "P"},
	MethodAutomated: {"S"},
}

var codeCategory = func() map[string]MethodCategory {
	m := make(map[string]MethodCategory)
	for category, codes := range methodCodes {
		for _, code := range codes {
			m[code] = category
		}
	}
	return m
}()

// ParseMethodCategory resolves caller input against the closed
// vocabulary. Unrecognized values return false, never a passthrough.
func ParseMethodCategory(raw string) (MethodCategory, bool) {
	switch MethodCategory(raw) {
	case MethodRadar, MethodLaser, MethodVascar, MethodPatrol, MethodAutomated:
		return MethodCategory(raw), true
	}
	return "", false
}

// CodesForMethod returns the raw codes behind a category. The returned
// slice is a copy so callers cannot mutate the table.
func CodesForMethod(category MethodCategory) []string {
	codes := methodCodes[category]
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// CategoryForCode maps a raw detection-method code to its category by
// its leading letter. Codes outside the table are "unknown".
func CategoryForCode(code string) MethodCategory {
	if code == "" {
		return MethodUnknown
	}
	if category, ok := codeCategory[code[:1]]; ok {
		return category
	}
	return MethodUnknown
}
