package present

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"deepdefender/internal/acquire"
	"deepdefender/internal/pipeline"
	"deepdefender/internal/preview"
)

func TestPresentOutcome(t *testing.T) {
	tests := []struct {
		name     string
		outcome  pipeline.Outcome
		view     View
		title    string
		headline string
		tone     Tone
	}{
		{"pending", pipeline.Pending{}, ViewAnalyzing, "Analyzing image...", "", ToneNeutral},
		{"manipulated", pipeline.DeriveVerdict(0.82, 1.7), ViewVerdict, "Detection Results", "Deepfake Detected", ToneAlert},
		{"authentic", pipeline.DeriveVerdict(0.1, 1.7), ViewVerdict, "Detection Results", "No Deepfake Detected", ToneSafe},
		{"failure", pipeline.Failure{Message: "Server responded with 500"}, ViewError, "Analysis Error", "", ToneError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := PresentOutcome(tt.outcome)
			if model.View != tt.view || model.Title != tt.title || model.Headline != tt.headline || model.Tone != tt.tone {
				t.Fatalf("unexpected model %+v", model)
			}
		})
	}
}

func TestPendingHasNoNumbers(t *testing.T) {
	model := PresentOutcome(pipeline.Pending{})
	if model.Confidence != 0 || len(model.Metrics) != 0 || model.Headline != "" {
		t.Fatalf("progress view must not carry verdict fields: %+v", model)
	}
}

func TestVerdictMetrics(t *testing.T) {
	model := PresentOutcome(pipeline.DeriveVerdict(0.82, 2.3))
	want := []Metric{
		{"Confidence", "82%"},
		{"Est. Processing Time", "2.3s"},
		{"Analyzed Frames", "1"},
		{"Detected Anomalies", "8"},
	}
	if len(model.Metrics) != len(want) {
		t.Fatalf("expected %d metrics, got %+v", len(want), model.Metrics)
	}
	for i := range want {
		if model.Metrics[i] != want[i] {
			t.Errorf("metric %d: expected %+v, got %+v", i, want[i], model.Metrics[i])
		}
	}
	if model.Confidence != 82 {
		t.Fatalf("expected confidence 82, got %d", model.Confidence)
	}
}

func TestFailureCarriesMessageAndRetry(t *testing.T) {
	model := PresentOutcome(pipeline.Failure{Message: "Server responded with 503"})
	if model.Message != "Server responded with 503" {
		t.Fatalf("unexpected message %q", model.Message)
	}
	if len(model.Actions) != 1 || model.Actions[0].ID != ActionRetry || model.Actions[0].Label != "Try Again" {
		t.Fatalf("expected retry action, got %+v", model.Actions)
	}
}

func TestPresentIdleShowsFeatures(t *testing.T) {
	model := Present(pipeline.State{Phase: pipeline.PhaseIdle})
	if model.View != ViewIdle || !model.AcceptsInput {
		t.Fatalf("unexpected idle model %+v", model)
	}
	if len(model.Features) != 3 || model.Features[0].Title != "Facial Analysis" {
		t.Fatalf("expected feature cards, got %+v", model.Features)
	}
	if model.Hint != "Accepted formats: jpg, png, jpeg | Max size: 10MB" {
		t.Fatalf("unexpected hint %q", model.Hint)
	}
}

func TestPresentInFlightRefusesInput(t *testing.T) {
	registry := preview.NewRegistry()
	file := &acquire.InputFile{Name: "face.png", MediaType: "image/png", Data: []byte{1}}
	handle := registry.Create(file)

	state := pipeline.State{
		Phase:    pipeline.PhaseInFlight,
		Attempt:  "a1",
		File:     file,
		Preview:  handle,
		Outcome:  pipeline.Pending{},
		InFlight: true,
		Version:  4,
	}
	model := Present(state)
	if model.AcceptsInput {
		t.Fatal("in-flight state must not accept input")
	}
	if model.FileName != "face.png" || model.PreviewID != handle.ID() || model.Attempt != "a1" || model.Version != 4 {
		t.Fatalf("unexpected model %+v", model)
	}
	if len(model.Features) != 0 {
		t.Fatal("features are only shown when idle without a file")
	}
	for _, a := range model.Actions {
		if a.ID == ActionChoose {
			t.Fatal("upload another must be hidden while analyzing")
		}
	}

	handle.Release()
	if Present(state).PreviewID != "" {
		t.Fatal("released preview must not be referenced")
	}
}

func TestPresentSettledOffersUploadAnother(t *testing.T) {
	file := &acquire.InputFile{Name: "face.png", MediaType: "image/png"}
	model := Present(pipeline.State{
		Phase:   pipeline.PhaseSettled,
		File:    file,
		Outcome: pipeline.DeriveVerdict(0.2, 1.0),
	})
	ids := make([]string, 0, len(model.Actions))
	for _, a := range model.Actions {
		ids = append(ids, a.ID)
	}
	if strings.Join(ids, ",") != "report,reset,choose" {
		t.Fatalf("unexpected actions %v", ids)
	}
	if model.FileStatus != "Image uploaded" {
		t.Fatalf("unexpected file status %q", model.FileStatus)
	}
}

func TestPresentDoesNotMutateState(t *testing.T) {
	state := pipeline.State{Phase: pipeline.PhaseSettled, Outcome: pipeline.Failure{Message: "x"}, Version: 9}
	before := state
	_ = Present(state)
	if state != before {
		t.Fatal("state changed")
	}
}

func TestPresenterCustomLimit(t *testing.T) {
	model := Presenter{MaxFileSize: 5 << 20}.Present(pipeline.State{})
	if !strings.HasSuffix(model.Hint, "Max size: 5MB") {
		t.Fatalf("unexpected hint %q", model.Hint)
	}
}

func TestHumanSize(t *testing.T) {
	tests := map[int64]string{
		10 << 20:   "10MB",
		1536 << 10: "1.5MB",
		2048:       "2KB",
		12:         "12B",
	}
	for n, want := range tests {
		if got := HumanSize(n); got != want {
			t.Errorf("HumanSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestBuildReport(t *testing.T) {
	file := &acquire.InputFile{Name: "dir/face.png", MediaType: "image/png", Data: []byte("abcd")}
	state := pipeline.State{
		Phase:   pipeline.PhaseSettled,
		Attempt: "attempt-1",
		File:    file,
		Outcome: pipeline.DeriveVerdict(0.82, 2.4),
	}
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	report, err := BuildReport(state, now)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Result != "Deepfake Detected" || report.Confidence != 82 || report.AnomalyCount != 8 || report.SizeBytes != 4 {
		t.Fatalf("unexpected report %+v", report)
	}

	raw, err := report.Render(FormatJSON)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded["estimate_note"] != estimateNote || decoded["result"] != "Deepfake Detected" {
		t.Fatalf("unexpected json %s", raw)
	}

	md, err := report.Render(FormatMarkdown)
	if err != nil {
		t.Fatalf("render markdown: %v", err)
	}
	for _, want := range []string{"# Deepfake Analysis Report", "| Confidence | 82% |", "2024-05-06T07:08:09Z"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if got := report.FileName(FormatMarkdown); got != "deepdefender-report-face.md" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestMarkdownKeepsValuesOnOneRow(t *testing.T) {
	report := &Report{File: "a|b\nc\r\nd.png", Result: "Authentic", Attempt: "attempt-1"}
	md := report.Markdown()
	if !strings.Contains(md, "| File | a\\|b c d.png |\n") {
		t.Fatalf("file cell not escaped:\n%s", md)
	}
	for _, line := range strings.Split(strings.TrimSpace(md), "\n")[6:] {
		if !strings.HasPrefix(line, "| ") || !strings.HasSuffix(line, " |") {
			t.Fatalf("broken table row %q in:\n%s", line, md)
		}
	}
}

func TestBuildReportWithoutVerdict(t *testing.T) {
	for _, outcome := range []pipeline.Outcome{nil, pipeline.Pending{}, pipeline.Failure{Message: "x"}} {
		if _, err := BuildReport(pipeline.State{Outcome: outcome}, time.Now()); !errors.Is(err, ErrNoVerdict) {
			t.Fatalf("expected ErrNoVerdict for %T, got %v", outcome, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected error for pdf")
	}
}
