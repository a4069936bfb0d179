// Package chart provides sparkline rendering with comfort-band colours,
// minute tick marks, timeline labels, and band scale bars.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/classmon/internal/history"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Bands are the comfort thresholds of one measurement. A zero-valued Has*
// flag disables the band.
type Bands struct {
	Low, High, Crit          float64
	HasLow, HasHigh, HasCrit bool
}

// Comfort bands for a classroom.
var (
	TempBands  = Bands{Low: 22, High: 28, Crit: 32, HasLow: true, HasHigh: true, HasCrit: true}
	HumBands   = Bands{Low: 40, High: 70, Crit: 85, HasLow: true, HasHigh: true, HasCrit: true}
	LightBands = Bands{Low: 250, HasLow: true}
	NoBands    = Bands{}
)

// Color returns the colour for a value given the bands.
func (b Bands) Color(v float64) lipgloss.Color {
	switch {
	case b.HasCrit && v >= b.Crit:
		return lipgloss.Color("196") // red
	case b.HasHigh && v >= b.High:
		return lipgloss.Color("208") // orange
	case b.HasHigh && v >= b.High*0.95:
		return lipgloss.Color("220") // yellow
	case b.HasLow && v < b.Low:
		return lipgloss.Color("75") // blue
	default:
		return lipgloss.Color("78") // soft green
	}
}

// Range returns a chart range that covers min..peak with padding and
// includes the high band when it is close.
func (b Bands) Range(min, peak float64) (float64, float64) {
	if min > peak {
		return 0, 1
	}
	pad := math.Max(1, (peak-min)*0.1)
	lo, hi := min-pad, peak+pad
	if b.HasHigh && b.High > hi && b.High-hi < pad*3 {
		hi = b.High + pad
	}
	return lo, hi
}

// RenderSparkline renders values without timestamps, so no ticks.
func RenderSparkline(values []float64, width int, rangeMin, rangeMax float64, b Bands) string {
	if width <= 0 {
		return ""
	}
	pts := make([]history.Point, len(values))
	for i, v := range values {
		pts[i] = history.Point{Value: v}
	}
	return RenderSparklinePoints(pts, width, rangeMin, rangeMax, b)
}

func isMinuteTick(points []history.Point, i int) bool {
	p := points[i]
	if p.Time.IsZero() {
		return false
	}
	if p.Time.Second() == 0 {
		return true
	}
	return i > 0 && !points[i-1].Time.IsZero() && p.Time.Minute() != points[i-1].Time.Minute()
}

// RenderSparklinePoints renders a sparkline with a subtle pipe at each
// minute boundary. Short series are left-padded with a dim dash.
func RenderSparklinePoints(points []history.Point, width int, rangeMin, rangeMax float64, b Bands) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < padLen; i++ {
		sb.WriteString(dim.Render("╌"))
	}

	tickStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i, p := range points {
		if isMinuteTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}

		norm := (p.Value - rangeMin) / span
		norm = math.Max(0, math.Min(1, norm))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}

		style := lipgloss.NewStyle().Foreground(b.Color(p.Value))
		if b.HasCrit && p.Value >= b.Crit {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}

	return sb.String()
}

// RenderTimeline renders HH:MM labels under the sparkline at each minute
// tick position.
func RenderTimeline(points []history.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)

	line := make([]rune, width)
	for i := range line {
		line[i] = ' '
	}

	lastEnd := -1
	for i, p := range points {
		if !isMinuteTick(points, i) {
			continue
		}
		label := p.Time.Format("15:04")
		start := padLen + i - 2
		if start < 0 {
			start = 0
		}
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range label {
			line[start+j] = ch
		}
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render(string(line))
}

// RenderScale renders a bar showing the current value against the bands.
func RenderScale(current, rangeMin, rangeMax float64, b Bands, width int) string {
	if width <= 0 {
		return ""
	}

	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}
	pos := func(v float64) int {
		p := int(float64(width-1) * (v - rangeMin) / span)
		if p < 0 || p >= width {
			return -1
		}
		return p
	}

	marks := map[int]lipgloss.Color{}
	if b.HasLow {
		if p := pos(b.Low); p >= 0 {
			marks[p] = lipgloss.Color("75")
		}
	}
	if b.HasHigh {
		if p := pos(b.High); p >= 0 {
			marks[p] = lipgloss.Color("220")
		}
	}
	if b.HasCrit {
		if p := pos(b.Crit); p >= 0 {
			marks[p] = lipgloss.Color("196")
		}
	}

	cur := int(float64(width-1) * (current - rangeMin) / span)
	if cur < 0 {
		cur = 0
	}
	if cur >= width {
		cur = width - 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch c, ok := marks[i]; {
		case i == cur:
			sb.WriteString(lipgloss.NewStyle().Foreground(b.Color(current)).Bold(true).Render("◆"))
		case ok:
			sb.WriteString(lipgloss.NewStyle().Foreground(c).Render("▪"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Render("·"))
		}
	}

	return sb.String()
}

// RenderValue renders a value with its unit, coloured by the bands.
func RenderValue(v float64, unit string, b Bands) string {
	style := lipgloss.NewStyle().Foreground(b.Color(v))
	if b.HasCrit && v >= b.Crit {
		style = style.Bold(true)
	}
	return style.Render(fmt.Sprintf("%5.1f%s", v, unit))
}
