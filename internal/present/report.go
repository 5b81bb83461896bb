package present

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"deepdefender/internal/pipeline"
)

// ErrNoVerdict is returned when a report is requested before a verdict exists.
var ErrNoVerdict = errors.New("present: no verdict to report")

// Format selects a report encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, markdown or md; empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".json"
}

// ContentType returns the HTTP media type for f.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "application/json"
}

const estimateNote = "placeholder estimate, not a measurement"

// Report is the exported record of one verdict.
type Report struct {
	GeneratedAt                time.Time `json:"generated_at"`
	Attempt                    string    `json:"attempt"`
	File                       string    `json:"file"`
	MediaType                  string    `json:"media_type"`
	SizeBytes                  int64     `json:"size_bytes"`
	Result                     string    `json:"result"`
	IsManipulated              bool      `json:"is_manipulated"`
	DeepfakeProbability        float64   `json:"deepfake_probability"`
	Confidence                 int       `json:"confidence"`
	FrameCount                 int       `json:"frame_count"`
	AnomalyCount               int       `json:"anomaly_count"`
	EstimatedProcessingSeconds float64   `json:"estimated_processing_seconds"`
	EstimateNote               string    `json:"estimate_note"`
}

// BuildReport captures the settled verdict in state.
func BuildReport(state pipeline.State, now time.Time) (*Report, error) {
	verdict, ok := state.Verdict()
	if !ok {
		return nil, ErrNoVerdict
	}
	report := &Report{
		GeneratedAt:                now.UTC(),
		Attempt:                    state.Attempt,
		Result:                     Headline(verdict),
		IsManipulated:              verdict.IsManipulated,
		DeepfakeProbability:        verdict.Probability,
		Confidence:                 verdict.Confidence,
		FrameCount:                 verdict.FrameCount,
		AnomalyCount:               verdict.AnomalyCount,
		EstimatedProcessingSeconds: verdict.EstimatedProcessingSeconds,
		EstimateNote:               estimateNote,
	}
	if state.File != nil {
		report.File = state.File.Name
		report.MediaType = state.File.MediaType
		report.SizeBytes = state.File.Size()
	}
	return report, nil
}

// Render encodes r in format.
func (r *Report) Render(format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(r.Markdown()), nil
	case FormatJSON, "":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// Markdown renders r as a small Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Deepfake Analysis Report\n\n")
	fmt.Fprintf(&b, "**Result:** %s\n\n", r.Result)
	b.WriteString("| Field | Value |\n|---|---|\n")
	rows := [][2]string{
		{"File", r.File},
		{"Media type", r.MediaType},
		{"Size", strconv.FormatInt(r.SizeBytes, 10) + " bytes"},
		{"Deepfake probability", strconv.FormatFloat(r.DeepfakeProbability, 'f', -1, 64)},
		{"Confidence", strconv.Itoa(r.Confidence) + "%"},
		{"Analyzed Frames", strconv.Itoa(r.FrameCount)},
		{"Detected Anomalies", strconv.Itoa(r.AnomalyCount)},
		{EstimatedTimeLabel, strconv.FormatFloat(r.EstimatedProcessingSeconds, 'f', 1, 64) + "s (" + r.EstimateNote + ")"},
		{"Attempt", r.Attempt},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], tableCell.Replace(row[1]))
	}
	return b.String()
}

// tableCell keeps a value on one Markdown table row.
var tableCell = strings.NewReplacer("|", "\\|", "\r\n", " ", "\n", " ", "\r", " ")

// FileName suggests a download name for r in format.
func (r *Report) FileName(format Format) string {
	stem := strings.TrimSuffix(filepath.Base(r.File), filepath.Ext(r.File))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "analysis"
	}
	return "deepdefender-report-" + stem + format.Extension()
}
