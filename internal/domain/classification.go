package domain

// FileClassification is one entry of the classifier's answer.
type FileClassification struct {
	Filename  string `json:"filename"`
	Sections  []int  `json:"sections"`
	Reasoning string `json:"reasoning"`
}

// ClassificationDetails is the raw classifier document, persisted as
// llm_classification_details.json.
type ClassificationDetails struct {
	Classifications []FileClassification `json:"classifications"`
}

// SectionMapping maps section numbers 1..11 to the files relevant to them.
type SectionMapping map[int][]string

// NewSectionMapping returns a mapping with an empty bucket for every section.
func NewSectionMapping() SectionMapping {
	m := make(SectionMapping, SectionCount)
	for n := 1; n <= SectionCount; n++ {
		m[n] = []string{}
	}
	return m
}

func ValidSection(n int) bool {
	return n >= 1 && n <= SectionCount
}

// EmptySections lists the section numbers that have no files.
func (m SectionMapping) EmptySections() []int {
	var empty []int
	for n := 1; n <= SectionCount; n++ {
		if len(m[n]) == 0 {
			empty = append(empty, n)
		}
	}
	return empty
}

// Remap rewrites every path through fn, keeping bucket order.
func (m SectionMapping) Remap(fn func(string) string) SectionMapping {
	out := NewSectionMapping()
	for n, paths := range m {
		mapped := make([]string, 0, len(paths))
		for _, p := range paths {
			mapped = append(mapped, fn(p))
		}
		out[n] = mapped
	}
	return out
}
