// Package monitor implements the live classroom dashboard TUI. Its update
// loop is the render loop: every tick it drains the ingestion queue through
// the processor, rebuilds the dashboard frame and publishes it.
package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/classmon/internal/chart"
	"github.com/luki/classmon/internal/classifier"
	"github.com/luki/classmon/internal/dashboard"
	"github.com/luki/classmon/internal/history"
	"github.com/luki/classmon/internal/ingest"
	"github.com/luki/classmon/internal/sensor"
	"github.com/luki/classmon/internal/weather"
)

const (
	DefaultRefresh = 1 * time.Second
	weatherTimeout = 10 * time.Second
)

// FeedStatus is what the title bar needs from the broker connection.
type FeedStatus interface {
	Connected() bool
	Counts() (received, dropped uint64)
}

// WeatherSource is satisfied by *weather.Cache.
type WeatherSource interface {
	Fetch(ctx context.Context) (weather.Conditions, bool)
}

// Options wires the model to the rest of the pipeline. Only Processor is
// required.
type Options struct {
	Processor   *ingest.Processor
	Weather     WeatherSource
	Feed        FeedStatus
	Publisher   *dashboard.Publisher
	Model       classifier.State
	Wake        <-chan struct{}
	Topic       string
	Broker      string
	LogPath     string
	DownloadURL string
	Refresh     time.Duration
	FallbackOut float64
	Clock       func() time.Time
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type wakeMsg struct{}

type weatherMsg struct {
	cond weather.Conditions
	ok   bool
}

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live dashboard.
type Model struct {
	opts Options

	frame      dashboard.Frame
	built      bool
	persistErr error

	weatherPending bool
	weatherKnown   bool
	conditions     weather.Conditions
	weatherOK      bool

	width     int
	height    int
	scroll    int
	lastTick  time.Time
	startTime time.Time
	paused    bool
}

// New creates the initial model and renders the waiting frame.
func New(opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.FallbackOut == 0 {
		opts.FallbackOut = ingest.DefaultFallbackTempOut
	}
	m := Model{
		opts:           opts,
		startTime:      opts.Clock(),
		weatherPending: opts.Weather != nil,
	}
	m.step()
	return m
}

// Frame returns the frame currently on screen.
func (m Model) Frame() dashboard.Frame {
	return m.frame
}

// Paused reports whether draining is suspended.
func (m Model) Paused() bool {
	return m.paused
}

// ── Commands ─────────────────────────────────────────────────────────

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForWake(wake <-chan struct{}) tea.Cmd {
	if wake == nil {
		return nil
	}
	return func() tea.Msg {
		<-wake
		return wakeMsg{}
	}
}

func fetchWeather(src WeatherSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), weatherTimeout)
		defer cancel()
		cond, ok := src.Fetch(ctx)
		return weatherMsg{cond: cond, ok: ok}
	}
}

// step runs one render-loop iteration: drain, then rebuild and publish the
// frame when anything changed.
func (m *Model) step() {
	batch := m.opts.Processor.Drain()
	if len(batch.Records) > 0 {
		m.persistErr = batch.Err
	}
	if m.built && len(batch.Records) == 0 {
		return
	}
	m.frame = dashboard.Build(m.opts.Processor.Series(), m.opts.Topic, m.opts.Clock())
	m.built = true
	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(m.frame)
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.opts.Refresh), waitForWake(m.opts.Wake)}
	if m.opts.Weather != nil {
		cmds = append(cmds, fetchWeather(m.opts.Weather))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.lastTick = time.Time(msg)
		cmds := []tea.Cmd{tickCmd(m.opts.Refresh)}
		if m.opts.Weather != nil && !m.weatherPending {
			m.weatherPending = true
			cmds = append(cmds, fetchWeather(m.opts.Weather))
		}
		if !m.paused {
			m.step()
		}
		return m, tea.Batch(cmds...)

	case wakeMsg:
		if !m.paused {
			m.step()
		}
		return m, waitForWake(m.opts.Wake)

	case weatherMsg:
		m.weatherPending = false
		m.weatherKnown = true
		m.conditions, m.weatherOK = msg.cond, msg.ok
		m.opts.Processor.SetOutdoor(msg.cond.Temperature, msg.ok)
	}

	return m, nil
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
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorHigh     = lipgloss.Color("208")
	colorCrit     = lipgloss.Color("196")
	colorCold     = lipgloss.Color("75")
	colorAlertBg  = lipgloss.Color("52")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitleBar(contentWidth))
	sections = append(sections, m.renderBanners(contentWidth)...)

	if m.frame.Waiting {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render(fmt.Sprintf("Waiting for sensor data on topic '%s'...", m.opts.Topic))
		sections = append(sections, waiting)
	} else {
		sections = append(sections, m.renderMetrics(contentWidth))
		sections = append(sections, m.renderCharts(contentWidth)...)
		sections = append(sections, m.renderPreview(contentWidth))
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

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("CLASS MONITOR")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	var statusParts []string

	statusParts = append(statusParts, dimS.Render("up "+fmtDuration(m.opts.Clock().Sub(m.startTime))))

	if !m.lastTick.IsZero() {
		statusParts = append(statusParts, dimS.Render(m.lastTick.Format(sensor.TimestampLayout)))
	}

	mqtt := lipgloss.NewStyle().Foreground(colorCrit).Render("MQTT ✕")
	if m.opts.Feed != nil && m.opts.Feed.Connected() {
		received, dropped := m.opts.Feed.Counts()
		mqtt = lipgloss.NewStyle().Foreground(colorOk).Render("MQTT ●") +
			dimS.Render(fmt.Sprintf(" %d msg", received))
		if dropped > 0 {
			mqtt += lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf(" %d bad", dropped))
		}
	}
	statusParts = append(statusParts, mqtt)

	if m.paused {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Render("PAUSED"))
	}

	if m.opts.LogPath != "" {
		rec := lipgloss.NewStyle().Foreground(colorCrit).Render("REC") +
			dimS.Render(" "+m.opts.LogPath)
		statusParts = append(statusParts, rec)
	}

	sep := dimS.Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + filler + right)
}

func (m Model) renderBanners(width int) []string {
	banner := func(c lipgloss.Color, text string) string {
		return lipgloss.NewStyle().
			Foreground(c).
			Bold(true).
			Width(width).
			Padding(0, 1).
			Render(text)
	}

	var out []string

	if m.frame.Alert != "" {
		out = append(out, lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(colorAlertBg).
			Bold(true).
			Width(width).
			Padding(0, 1).
			Render("⚠ "+m.frame.Alert))
	}

	if m.opts.Feed == nil || !m.opts.Feed.Connected() {
		out = append(out, banner(colorCrit, fmt.Sprintf("MQTT disconnected from %s", m.opts.Broker)))
	}

	switch m.opts.Model {
	case classifier.StateMissing:
		out = append(out, banner(colorWarn, "Model not found: predictions read '"+sensor.LabelNoModel+"'"))
	case classifier.StateLoadError:
		out = append(out, banner(colorWarn, "Model failed to load: predictions read '"+sensor.LabelNoModel+"'"))
	}

	if m.weatherKnown && !m.weatherOK {
		out = append(out, banner(colorWarn,
			fmt.Sprintf("Weather unavailable: using %.1f°C outdoors", m.opts.FallbackOut)))
	}

	if m.persistErr != nil {
		_, failed, _ := m.opts.Processor.Stats()
		out = append(out, banner(colorCrit,
			fmt.Sprintf("ERROR: log write failed (%d records not saved): %v", failed, m.persistErr)))
	}

	return out
}

func (m Model) renderMetrics(width int) string {
	f := m.frame
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	labelS := lipgloss.NewStyle().Foreground(colorPanel).Bold(true)

	cell := func(label, value, sub string) string {
		return lipgloss.NewStyle().
			Width(22).
			Render(labelS.Render(label) + "\n" + value + "\n" + dimS.Render(sub))
	}

	deltaS := lipgloss.NewStyle().Foreground(colorOk)
	if f.DeltaOut > 0 {
		deltaS = deltaS.Foreground(colorHigh)
	}

	outdoor := "fallback"
	if m.weatherOK {
		outdoor = m.conditions.Description
	}

	cells := []string{
		cell("Suhu Kelas",
			chart.RenderValue(f.Latest.TempIn, "°C", chart.TempBands),
			deltaS.Render(fmt.Sprintf("%+.1f°C vs luar", f.DeltaOut))),
		cell("Kelembaban",
			chart.RenderValue(f.Latest.HumIn, "%", chart.HumBands), ""),
		cell("Cahaya",
			lipgloss.NewStyle().Foreground(chart.LightBands.Color(float64(f.Latest.LuxIn))).
				Render(fmt.Sprintf("%5d lux", f.Latest.LuxIn)), ""),
		cell("Suhu Luar",
			chart.RenderValue(f.Latest.TempOut, "°C", chart.NoBands), outdoor),
		cell("Status AI",
			lipgloss.NewStyle().Foreground(statusColor(f.Status)).Bold(true).Render(f.Status),
			f.Hint),
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n" +
		dimS.Render(fmt.Sprintf("%d records this session", f.Records))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(content)
}

func statusColor(label string) lipgloss.Color {
	switch sensor.StatusOf(label) {
	case sensor.StatusHot:
		return colorCrit
	case sensor.StatusCold:
		return colorCold
	case sensor.StatusComfortable:
		return colorOk
	default:
		return colorDim
	}
}

type chartRow struct {
	label  string
	key    string
	unit   string
	column history.Column
	bands  chart.Bands
}

func toPoints(cps []dashboard.ChartPoint) []history.Point {
	pts := make([]history.Point, len(cps))
	for i, p := range cps {
		pts[i] = history.Point{Value: p.Value, Time: p.Time}
	}
	return pts
}

func bounds(series ...[]history.Point) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pts := range series {
		for _, p := range pts {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	return lo, hi
}

func (m Model) renderCharts(totalWidth int) []string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	chartWidth := innerWidth - 60
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > dashboard.ChartWindow {
		chartWidth = dashboard.ChartWindow
	}

	labelW := 10
	valueW := 10

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	panels := []struct {
		chart dashboard.Chart
		rows  []chartRow
	}{
		{m.frame.TempChart, []chartRow{
			{"Temp_In", "Temp_In", "°C", history.TempIn, chart.TempBands},
			{"Temp_Out", "Temp_Out", "°C", history.TempOut, chart.NoBands},
		}},
		{m.frame.HumChart, []chartRow{
			{"Hum_In", "Hum_In", "%", history.HumIn, chart.HumBands},
		}},
		{m.frame.LuxChart, []chartRow{
			{"Lux_In", "Lux_In", "lx", history.LuxIn, chart.LightBands},
		}},
	}

	series := m.opts.Processor.Series()
	var out []string

	for _, p := range panels {
		var rows []string
		rows = append(rows, lipgloss.NewStyle().Bold(true).Foreground(colorPanel).Render(p.chart.Title))

		all := make([][]history.Point, len(p.rows))
		for i, r := range p.rows {
			all[i] = toPoints(p.chart.Series[r.key])
		}
		rangeMin, rangeMax := p.rows[0].bands.Range(bounds(all...))

		var lastPts []history.Point
		for i, r := range p.rows {
			pts := all[i]
			if len(pts) == 0 {
				continue
			}
			lastPts = pts
			current := pts[len(pts)-1].Value

			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Width(labelW).
				Render(truncate(r.label, labelW))

			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(current, r.unit, r.bands))

			spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, r.bands)

			st := series.Stats(r.column)
			stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.1f", st.Avg())) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.1f", st.Min)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.1f", st.Peak))

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+stats)
		}

		if lastPts != nil {
			timeline := chart.RenderTimeline(lastPts, chartWidth)
			if strings.TrimSpace(timeline) != "" {
				pad := strings.Repeat(" ", labelW+valueW+2)
				rows = append(rows, pad+" "+timeline)
			}
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

func (m Model) renderPreview(width int) string {
	headS := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	cellS := lipgloss.NewStyle().Foreground(colorLabel)

	cols := []struct {
		name string
		w    int
	}{
		{"Timestamp", 10}, {"Temp_In", 9}, {"Hum_In", 9}, {"Lux_In", 8}, {"Temp_Out", 9}, {"Prediction", 14},
	}

	line := func(style lipgloss.Style, cells ...string) string {
		var sb strings.Builder
		for i, c := range cells {
			s := style.Width(cols[i].w)
			if i > 0 && i < len(cells)-1 {
				s = s.Align(lipgloss.Right)
			}
			sb.WriteString(s.Render(truncate(c, cols[i].w)))
			sb.WriteString(" ")
		}
		return sb.String()
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	rows := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorPanel).Render(fmt.Sprintf("Data Terbaru (%d)", len(m.frame.Preview))),
		line(headS, names...),
	}
	for _, r := range m.frame.Preview {
		rows = append(rows, line(cellS,
			r.Timestamp,
			sensor.FormatFloat(r.TempIn),
			sensor.FormatFloat(r.HumIn),
			fmt.Sprintf("%d", r.LuxIn),
			sensor.FormatFloat(r.TempOut),
			r.Prediction,
		))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	highS := lipgloss.NewStyle().Foreground(colorHigh).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	coldS := lipgloss.NewStyle().Foreground(colorCold).Render("██")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	legend := coldS + dimS.Render(" low ") +
		okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" warm ") +
		highS + dimS.Render(" high ") +
		critS + dimS.Render(" crit")

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  j/k") + keyS.Render(":scroll") +
		dimS.Render("  p") + keyS.Render(":pause")
	if m.opts.DownloadURL != "" {
		keys += dimS.Render("  download ") + keyS.Render(m.opts.DownloadURL)
	}

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}
	filler := strings.Repeat(" ", gap)

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + filler + keys)
}

func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-1] + "…"
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
