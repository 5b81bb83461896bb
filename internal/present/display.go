package present

import (
	"fmt"
	"strconv"

	"deepdefender/internal/pipeline"
)

// View selects which screen a surface renders.
type View string

const (
	ViewIdle      View = "idle"
	ViewAnalyzing View = "analyzing"
	ViewVerdict   View = "verdict"
	ViewError     View = "error"
)

// Tone hints at the colour treatment of the headline.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneAlert   Tone = "alert"
	ToneSafe    Tone = "safe"
	ToneError   Tone = "error"
)

// Action ids shared by every surface.
const (
	ActionChoose = "choose"
	ActionReport = "report"
	ActionReset  = "reset"
	ActionRetry  = "retry"
)

// DefaultMaxFileSize matches the limit advertised in the idle view.
const DefaultMaxFileSize int64 = 10 << 20

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Key   string `json:"key"`
}

// DisplayModel is everything a surface needs to draw one frame.
type DisplayModel struct {
	View     View   `json:"view"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Headline string `json:"headline,omitempty"`
	Tone     Tone   `json:"tone"`
	// Confidence is only set on the verdict view.
	Confidence int      `json:"confidence,omitempty"`
	Metrics    []Metric `json:"metrics,omitempty"`
	Message    string   `json:"message,omitempty"`
	Hint       string   `json:"hint,omitempty"`
	Actions    []Action `json:"actions,omitempty"`

	FileName     string    `json:"file_name,omitempty"`
	FileStatus   string    `json:"file_status,omitempty"`
	PreviewID    string    `json:"preview_id,omitempty"`
	AcceptsInput bool      `json:"accepts_input"`
	Features     []Feature `json:"features,omitempty"`
	Attempt      string    `json:"attempt,omitempty"`
	Version      uint64    `json:"version"`
}

// PresentOutcome maps an outcome to its view. It has no side effects.
func PresentOutcome(outcome pipeline.Outcome) DisplayModel {
	switch o := outcome.(type) {
	case pipeline.Pending:
		return DisplayModel{
			View:     ViewAnalyzing,
			Title:    "Analyzing image...",
			Subtitle: "This may take a few moments",
			Tone:     ToneNeutral,
		}
	case pipeline.Verdict:
		return presentVerdict(o)
	case pipeline.Failure:
		return DisplayModel{
			View:    ViewError,
			Title:   "Analysis Error",
			Tone:    ToneError,
			Message: o.Message,
			Hint:    "Please try again or check that the backend server is running.",
			Actions: []Action{{ID: ActionRetry, Label: "Try Again", Key: "r"}},
		}
	default:
		return DisplayModel{View: ViewIdle, Tone: ToneNeutral}
	}
}

// Headline returns the verdict label.
func Headline(v pipeline.Verdict) string {
	if v.IsManipulated {
		return "Deepfake Detected"
	}
	return "No Deepfake Detected"
}

func presentVerdict(v pipeline.Verdict) DisplayModel {
	tone := ToneSafe
	if v.IsManipulated {
		tone = ToneAlert
	}
	return DisplayModel{
		View:       ViewVerdict,
		Title:      "Detection Results",
		Headline:   Headline(v),
		Tone:       tone,
		Confidence: v.Confidence,
		Metrics:    VerdictMetrics(v),
		Actions: []Action{
			{ID: ActionReport, Label: "Download Report", Key: "d"},
			{ID: ActionReset, Label: "New Analysis", Key: "r"},
		},
	}
}

// EstimatedTimeLabel names the processing-time figure. The figure is a
// placeholder estimate, not measured latency.
const EstimatedTimeLabel = "Est. Processing Time"

// VerdictMetrics lists the labelled figures shown under a verdict.
func VerdictMetrics(v pipeline.Verdict) []Metric {
	return []Metric{
		{Label: "Confidence", Value: fmt.Sprintf("%d%%", v.Confidence)},
		{Label: EstimatedTimeLabel, Value: strconv.FormatFloat(v.EstimatedProcessingSeconds, 'f', 1, 64) + "s"},
		{Label: "Analyzed Frames", Value: strconv.Itoa(v.FrameCount)},
		{Label: "Detected Anomalies", Value: strconv.Itoa(v.AnomalyCount)},
	}
}

// Presenter projects pipeline state into display models.
type Presenter struct {
	MaxFileSize int64
}

// Present projects state with the default size limit.
func Present(state pipeline.State) DisplayModel {
	return Presenter{MaxFileSize: DefaultMaxFileSize}.Present(state)
}

// Present projects state into a display model. It never mutates state.
func (p Presenter) Present(state pipeline.State) DisplayModel {
	var model DisplayModel
	if state.Outcome == nil {
		model = p.idle(state)
	} else {
		model = PresentOutcome(state.Outcome)
	}

	model.AcceptsInput = !state.InFlight
	model.Attempt = state.Attempt
	model.Version = state.Version
	if state.File != nil {
		model.FileName = state.File.Name
		model.FileStatus = "Image uploaded"
		if !state.InFlight {
			model.Actions = append(model.Actions, Action{ID: ActionChoose, Label: "Upload Another", Key: "o"})
		}
	}
	if state.Preview != nil && !state.Preview.Released() {
		model.PreviewID = state.Preview.ID()
	}
	return model
}

func (p Presenter) idle(state pipeline.State) DisplayModel {
	model := DisplayModel{
		View:     ViewIdle,
		Title:    "Drag & Drop Your Image",
		Subtitle: "Or click the button below to select a file",
		Tone:     ToneNeutral,
		Hint:     FormatsNote(p.MaxFileSize),
	}
	if state.File == nil {
		model.Actions = []Action{{ID: ActionChoose, Label: "Select File", Key: "o"}}
		model.Features = Features()
	}
	return model
}

// FormatsNote describes the accepted formats and the size limit.
func FormatsNote(maxFileSize int64) string {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return "Accepted formats: jpg, png, jpeg | Max size: " + HumanSize(maxFileSize)
}

// HumanSize renders n bytes the way the idle view advertises limits.
func HumanSize(n int64) string {
	const mb = 1 << 20
	const kb = 1 << 10
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%dMB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%dKB", n/kb)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
