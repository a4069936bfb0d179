// Package viewer implements the log browser TUI: it loads the persisted
// CSV log and lets the operator scrub through the records with sparkline
// windows ending at the cursor.
package viewer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/classmon/internal/chart"
	"github.com/luki/classmon/internal/history"
	"github.com/luki/classmon/internal/sensor"
	"github.com/luki/classmon/internal/store"
)

// ErrEmpty is returned by Run when the log holds no records.
var ErrEmpty = errors.New("log has no records")

const skip = 60

// Run loads the log at path and launches the viewer.
func Run(path string) error {
	recs, err := store.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	p := tea.NewProgram(
		newModel(path, recs),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorPanel    = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorCursor   = lipgloss.Color("214")
	colorCrit     = lipgloss.Color("196")
)

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	path    string
	records []sensor.LogRecord
	cursor  int // index into records
	scroll  int
	width   int
	height  int

	stats map[history.Column]history.Stats
	hot   int // records labelled hot
}

type panel struct {
	title string
	rows  []panelRow
}

type panelRow struct {
	label  string
	unit   string
	column history.Column
	bands  chart.Bands
}

var panels = []panel{
	{"Suhu Kelas vs Suhu Luar (°C)", []panelRow{
		{"Temp_In", "°C", history.TempIn, chart.TempBands},
		{"Temp_Out", "°C", history.TempOut, chart.NoBands},
	}},
	{"Kelembaban Udara (%)", []panelRow{
		{"Hum_In", "%", history.HumIn, chart.HumBands},
	}},
	{"Intensitas Cahaya (Lux)", []panelRow{
		{"Lux_In", "lx", history.LuxIn, chart.LightBands},
	}},
}

func newModel(path string, recs []sensor.LogRecord) model {
	s := history.NewSeries()
	s.Append(recs...)

	m := model{
		path:    path,
		records: recs,
		cursor:  len(recs) - 1,
		stats:   make(map[history.Column]history.Stats),
	}
	for _, c := range []history.Column{history.TempIn, history.TempOut, history.HumIn, history.LuxIn} {
		m.stats[c] = s.Stats(c)
	}
	for _, r := range recs {
		if sensor.IsHot(r.Prediction) {
			m.hot++
		}
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		last := len(m.records) - 1
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			if m.cursor > 0 {
				m.cursor--
			}
		case "right", "l":
			if m.cursor < last {
				m.cursor++
			}
		case "shift+left", "H":
			m.cursor = max(m.cursor-skip, 0)
		case "shift+right", "L":
			m.cursor = min(m.cursor+skip, last)
		case "home":
			m.cursor = 0
		case "end":
			m.cursor = last

		case "[":
			m.cursor = m.findHot(-1)
		case "]":
			m.cursor = m.findHot(1)

		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// findHot returns the index of the nearest hot record in direction dir,
// or the cursor itself when there is none.
func (m model) findHot(dir int) int {
	for i := m.cursor + dir; i >= 0 && i < len(m.records); i += dir {
		if sensor.IsHot(m.records[i].Prediction) {
			return i
		}
	}
	return m.cursor
}

// window returns up to width records ending at the cursor.
func (m model) window(width int) []sensor.LogRecord {
	if len(m.records) == 0 {
		return nil
	}
	end := m.cursor + 1
	start := end - width
	if start < 0 {
		start = 0
	}
	return m.records[start:end]
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitle(contentWidth))

	if len(m.records) == 0 {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(2, 0).
			Align(lipgloss.Center).
			Width(contentWidth).
			Render("No records in this log."))
	} else {
		sections = append(sections, m.renderCursorInfo(contentWidth))
		sections = append(sections, m.renderRecord(contentWidth))
		sections = append(sections, m.renderPanels(contentWidth)...)
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := m.height
	if visibleLines < 5 {
		visibleLines = 5
	}
	maxScroll := len(lines) - visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}

	start := m.scroll
	end := start + visibleLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("CLASS LOG")

	file := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.path)

	info := ""
	if len(m.records) > 0 {
		first := m.records[0].Timestamp
		last := m.records[len(m.records)-1].Timestamp
		info = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  %s - %s  (%d records, %d hot)", first, last, len(m.records), m.hot))
	}

	right := file + info

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderCursorInfo(width int) string {
	rec := m.records[m.cursor]
	ts := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(rec.Timestamp)

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.records)))

	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + m.renderScrubber(barWidth))
}

// renderScrubber draws the cursor position over the log with a tick at
// every hot record.
func (m model) renderScrubber(width int) string {
	n := len(m.records)
	if n == 0 || width <= 0 {
		return ""
	}

	slot := func(i int) int {
		if n == 1 {
			return 0
		}
		return i * (width - 1) / (n - 1)
	}

	hot := make(map[int]bool)
	for i, r := range m.records {
		if sensor.IsHot(r.Prediction) {
			hot[slot(i)] = true
		}
	}
	pos := slot(m.cursor)

	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	hotS := lipgloss.NewStyle().Foreground(colorCrit)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == pos:
			sb.WriteString(curS.Render("◆"))
		case hot[i]:
			sb.WriteString(hotS.Render("│"))
		default:
			sb.WriteString(dimS.Render("─"))
		}
	}
	return sb.String()
}

func (m model) renderRecord(width int) string {
	rec := m.records[m.cursor]
	dimS := lipgloss.NewStyle().Foreground(colorDim)

	status := sensor.StatusOf(rec.Prediction)
	predS := lipgloss.NewStyle().Bold(true).Foreground(colorLabel)
	if status == sensor.StatusHot {
		predS = predS.Foreground(colorCrit)
	}

	line := dimS.Render("in ") + chart.RenderValue(rec.TempIn, "°C", chart.TempBands) +
		dimS.Render("  out ") + chart.RenderValue(rec.TempOut, "°C", chart.NoBands) +
		dimS.Render("  hum ") + chart.RenderValue(rec.HumIn, "%", chart.HumBands) +
		dimS.Render("  lux ") + lipgloss.NewStyle().Foreground(chart.LightBands.Color(float64(rec.LuxIn))).Render(fmt.Sprintf("%d", rec.LuxIn)) +
		dimS.Render("  → ") + predS.Render(rec.Prediction)
	if hint := status.Hint(); hint != "" {
		line += dimS.Render("  " + hint)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(line)
}

func (m model) renderPanels(totalWidth int) []string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	chartWidth := innerWidth - 60
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > 140 {
		chartWidth = 140
	}

	labelW := 10
	valueW := 10

	window := m.window(chartWidth)
	rec := m.records[m.cursor]

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	var out []string
	for _, p := range panels {
		rows := []string{lipgloss.NewStyle().Bold(true).Foreground(colorPanel).Render(p.title)}

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range p.rows {
			st := m.stats[r.column]
			lo, hi = math.Min(lo, st.Min), math.Max(hi, st.Peak)
		}
		rangeMin, rangeMax := p.rows[0].bands.Range(lo, hi)

		for _, r := range p.rows {
			pts := history.Points(window, r.column)
			st := m.stats[r.column]

			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Bold(true).
				Width(labelW).
				Render(r.label)
			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(r.column.Value(rec), r.unit, r.bands))
			spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, r.bands)

			stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.1f", st.Avg())) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.1f", st.Min)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.1f", st.Peak))

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+stats)
		}

		timeline := chart.RenderTimeline(history.Points(window, p.rows[0].column), chartWidth)
		if strings.TrimSpace(timeline) != "" {
			rows = append(rows, strings.Repeat(" ", labelW+valueW+2)+" "+timeline)
		}

		out = append(out, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(totalWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}

	return out
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(fmt.Sprintf(":skip %d", skip)) +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  [/]") + keyS.Render(":prev/next hot") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}
