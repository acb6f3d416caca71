package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SectionCount is the number of fixed chapters in a mentoring report.
const SectionCount = 11

// CompanyInfo is the metadata section 1 extracts from the business documents.
type CompanyInfo struct {
	CompanyName string `json:"company_name"`
	AFM         string `json:"afm"`
	KAD         string `json:"kad"`
	Website     string `json:"website"`
}

func (c CompanyInfo) NameOr(fallback string) string {
	if c.CompanyName == "" {
		return fallback
	}
	return c.CompanyName
}

// Text is a string that also accepts JSON numbers and booleans. Models
// often answer "value": 450 where the layout asks for a string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		*t = Text(strings.TrimSpace(string(data)))
		return nil
	}
	// Arrays and objects are kept as compact JSON.
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

type KPI struct {
	Label  string `json:"label"`
	Value  Text   `json:"value"`
	Target Text   `json:"target,omitempty"`
	Status string `json:"status,omitempty"`
}

type Table struct {
	Title   string   `json:"title"`
	Headers []string `json:"headers"`
	Rows    [][]Text `json:"rows"`
}

// ActionItem carries both the section 1 layout (action/owner/cost) and the
// layout used by sections 2-11 (title/priority/description...).
type ActionItem struct {
	Title           string `json:"title,omitempty"`
	Action          string `json:"action,omitempty"`
	Priority        string `json:"priority,omitempty"`
	Timeline        Text   `json:"timeline,omitempty"`
	Owner           string `json:"owner,omitempty"`
	Cost            Text   `json:"cost,omitempty"`
	Description     string `json:"description,omitempty"`
	ExpectedImpact  string `json:"expected_impact,omitempty"`
	ResourcesNeeded string `json:"resources_needed,omitempty"`
}

type VideoRecommendation struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	URL       string `json:"url"`
	Duration  string `json:"duration"`
	Topic     string `json:"topic"`
	Relevance string `json:"relevance"`
}

type LegalLink struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Section is one generated chapter as returned by the model.
type Section struct {
	Number               int                   `json:"number"`
	Title                string                `json:"title"`
	Metadata             *CompanyInfo          `json:"metadata,omitempty"`
	Content              string                `json:"content"`
	KPIs                 []KPI                 `json:"kpis"`
	Tables               []Table               `json:"tables"`
	ActionItems          []ActionItem          `json:"action_items"`
	VideoRecommendations []VideoRecommendation `json:"video_recommendations,omitempty"`
}

// Report is the compiled document written to mentoring_report_complete.json.
type Report struct {
	CompanyName          string                `json:"company_name"`
	AFM                  string                `json:"afm"`
	KAD                  string                `json:"kad"`
	Website              string                `json:"website"`
	ReportTitle          string                `json:"report_title"`
	ExecutiveSummary     string                `json:"executive_summary"`
	Sections             []Section             `json:"sections"`
	VideoRecommendations []VideoRecommendation `json:"video_recommendations"`
	LegalLinks           []LegalLink           `json:"legal_links"`
}
