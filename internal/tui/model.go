package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deepdefender/internal/acquire"
	"deepdefender/internal/pipeline"
	"deepdefender/internal/present"
	"deepdefender/internal/preview"
)

// Pipeline is the part of the orchestrator the terminal surface drives.
type Pipeline interface {
	Submit(ctx context.Context, source acquire.Source) (pipeline.State, error)
	Reset() pipeline.State
}

// Options configures a Model.
type Options struct {
	// Chooser opens a native file chooser; nil hides the option.
	Chooser     acquire.Source
	Limits      acquire.Limits
	ReportDir   string
	ThumbWidth  int
	ThumbHeight int
	Now         func() time.Time
}

type Model struct {
	pipeline  Pipeline
	updates   <-chan pipeline.State
	opts      Options
	presenter present.Presenter

	state   pipeline.State
	display present.DisplayModel

	previewID   string
	previewArt  string
	previewSize string
	notes       []preview.Note

	flash    string
	frame    int
	width    int
	quitting bool
}

type doneMsg struct{}

type stateMsg pipeline.State

type tickMsg struct{}

type submittedMsg struct{ err error }

type reportMsg struct {
	path string
	err  error
}

type previewMsg struct {
	id    string
	art   string
	size  string
	notes []preview.Note
}

func NewModel(p Pipeline, updates <-chan pipeline.State, opts Options) Model {
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = 32
	}
	if opts.ThumbHeight <= 0 {
		opts.ThumbHeight = 32
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportDir == "" {
		opts.ReportDir = "."
	}
	presenter := present.Presenter{MaxFileSize: opts.Limits.MaxFileSize}
	return Model{
		pipeline:  p,
		updates:   updates,
		opts:      opts,
		presenter: presenter,
		display:   presenter.Present(pipeline.State{}),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForUpdates(m.updates), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = pipeline.State(msg)
		m.display = m.presenter.Present(m.state)
		cmds := []tea.Cmd{listenForUpdates(m.updates)}
		if m.display.PreviewID != m.previewID {
			m.previewID = m.display.PreviewID
			m.previewArt = ""
			m.previewSize = ""
			m.notes = nil
			if m.state.Preview != nil && m.previewID != "" {
				cmds = append(cmds, renderPreview(m.state.Preview, m.opts.ThumbWidth, m.opts.ThumbHeight))
			}
		}
		return m, tea.Batch(cmds...)
	case previewMsg:
		if msg.id == m.previewID {
			m.previewArt = msg.art
			m.previewSize = msg.size
			m.notes = msg.notes
		}
		return m, nil
	case submittedMsg:
		m.flash = submitFlash(msg.err, m.opts.Limits.MaxFileSize)
		return m, nil
	case reportMsg:
		if msg.err != nil {
			m.flash = "Report not saved: " + msg.err.Error()
		} else {
			m.flash = "Report saved to " + msg.path
		}
		return m, nil
	case tickMsg:
		m.frame++
		return m, tick()
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Paste {
		if !m.display.AcceptsInput {
			m.flash = "Analysis in progress"
			return m, nil
		}
		m.flash = ""
		return m, m.submit(acquire.Drop{Text: string(msg.Runes), Limits: m.opts.Limits})
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "o":
		if m.opts.Chooser == nil || !m.display.AcceptsInput {
			return m, nil
		}
		m.flash = ""
		return m, m.submit(m.opts.Chooser)
	case "r":
		if m.display.View == present.ViewVerdict || m.display.View == present.ViewError {
			m.flash = ""
			m.pipeline.Reset()
		}
		return m, nil
	case "d":
		if m.display.View != present.ViewVerdict {
			return m, nil
		}
		return m, saveReport(m.state, m.opts.ReportDir, m.opts.Now())
	}
	return m, nil
}

func (m Model) submit(source acquire.Source) tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		_, err := p.Submit(context.Background(), source)
		return submittedMsg{err: err}
	}
}

func submitFlash(err error, limit int64) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, acquire.ErrTooLarge):
		return "File exceeds the " + present.HumanSize(limitOrDefault(limit)) + " limit"
	default:
		return "Could not open file: " + err.Error()
	}
}

func limitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return present.DefaultMaxFileSize
	}
	return limit
}

func listenForUpdates(updates <-chan pipeline.State) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return stateMsg(update)
	}
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func renderPreview(h *preview.Handle, w, hgt int) tea.Cmd {
	return func() tea.Msg {
		msg := previewMsg{id: h.ID()}
		// Two pixel rows share one terminal row.
		if thumb, err := h.Thumbnail(w, hgt); err == nil {
			msg.art = RenderHalfBlocks(thumb)
		}
		if pw, ph, err := h.Dimensions(); err == nil {
			msg.size = fmt.Sprintf("%d x %d px", pw, ph)
		}
		if notes, err := h.CaptureNotes(); err == nil {
			msg.notes = notes
		}
		return msg
	}
}

func saveReport(state pipeline.State, dir string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		report, err := present.BuildReport(state, now)
		if err != nil {
			return reportMsg{err: err}
		}
		data, err := report.Render(present.FormatJSON)
		if err != nil {
			return reportMsg{err: err}
		}
		path := filepath.Join(dir, report.FileName(present.FormatJSON))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return reportMsg{err: err}
		}
		return reportMsg{path: path}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	lines := []string{titleStyle.Render("DeepDefender"), ""}
	switch m.display.View {
	case present.ViewAnalyzing:
		lines = append(lines, m.viewAnalyzing()...)
	case present.ViewVerdict:
		lines = append(lines, m.viewVerdict()...)
	case present.ViewError:
		lines = append(lines, m.viewError()...)
	default:
		lines = append(lines, m.viewIdle()...)
	}

	if m.flash != "" {
		lines = append(lines, "", flashStyle.Render(m.flash))
	}
	lines = append(lines, "", dimStyle.Render("q quit"))
	return strings.Join(lines, "\n")
}

func (m Model) viewIdle() []string {
	prompt := []string{
		labelStyle.Bold(true).Render(m.display.Title),
		dimStyle.Render("Or paste a file path here" + chooserHint(m.opts.Chooser != nil)),
		"",
		dimStyle.Render(m.display.Hint),
	}
	lines := []string{dropZoneStyle.Render(strings.Join(prompt, "\n"))}

	if len(m.display.Features) > 0 {
		lines = append(lines, "", titleStyle.Render(present.FeaturesTitle))
		cards := make([]string, 0, len(m.display.Features))
		cardWidth := 28
		for _, f := range m.display.Features {
			cards = append(cards, cardStyle.Width(cardWidth).Render(valueStyle.Render(f.Title)+"\n"+dimStyle.Render(f.Description)))
		}
		if m.width > 0 && m.width < (cardWidth+4)*len(cards) {
			lines = append(lines, lipgloss.JoinVertical(lipgloss.Left, cards...))
		} else {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		}
	}
	return lines
}

func chooserHint(enabled bool) string {
	if enabled {
		return ", or press o to choose one"
	}
	return ""
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m Model) viewAnalyzing() []string {
	spin := keyStyle.Render(spinnerFrames[m.frame%len(spinnerFrames)])
	lines := []string{
		spin + " " + labelStyle.Bold(true).Render(m.display.Title),
		dimStyle.Render(m.display.Subtitle),
	}
	if m.display.FileName != "" {
		lines = append(lines, "", dimStyle.Render(m.display.FileName))
	}
	return lines
}

func (m Model) viewVerdict() []string {
	headline := lipgloss.NewStyle().Bold(true).Foreground(ToneColor(m.display.Tone)).Render(m.display.Headline)

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}
	meter := lipgloss.NewStyle().Foreground(ToneColor(m.display.Tone)).
		Render(renderBar(barWidth, float64(m.display.Confidence)/100))

	details := []string{
		labelStyle.Render(m.display.Title),
		headline,
		meter + dimStyle.Render(fmt.Sprintf(" %d%%", m.display.Confidence)),
		RenderSummary(MetricRows(m.display.Metrics)),
	}
	if m.display.FileName != "" {
		details = append(details, dimStyle.Render(m.display.FileStatus+": "+m.display.FileName))
	}
	details = append(details, "", renderActions(m.display.Actions))

	body := strings.Join(details, "\n")
	if side := m.previewPanel(); side != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "   ", side)
	}
	return []string{body}
}

func (m Model) previewPanel() string {
	var parts []string
	if m.previewArt != "" {
		parts = append(parts, m.previewArt)
	}
	if m.previewSize != "" {
		parts = append(parts, dimStyle.Render(m.previewSize))
	}
	for _, note := range m.notes {
		parts = append(parts, dimStyle.Render(note.Message))
	}
	return strings.Join(parts, "\n")
}

func (m Model) viewError() []string {
	return []string{
		lipgloss.NewStyle().Bold(true).Foreground(ColorDanger).Render(m.display.Title),
		labelStyle.Render(m.display.Message),
		dimStyle.Render(m.display.Hint),
		"",
		renderActions(m.display.Actions),
	}
}

func renderActions(actions []present.Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, keyStyle.Render("["+a.Key+"]")+" "+labelStyle.Render(a.Label))
	}
	return strings.Join(parts, "  ")
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
