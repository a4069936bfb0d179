package sensor

import "strings"

// Labels shared by the classifier and the dashboard.
const (
	LabelHot     = "Panas"
	LabelCold    = "Dingin"
	LabelNoModel = "no model"
	LabelError   = "error"
)

// Status is the comfort class a prediction label falls into.
type Status int

const (
	StatusUnknown Status = iota
	StatusComfortable
	StatusHot
	StatusCold
)

// labelStatusMap maps label prefixes to comfort classes. Both the
// Indonesian labels of the trained model and English ones are accepted.
var labelStatusMap = []struct {
	prefix string
	status Status
}{
	{"panas", StatusHot},
	{"hot", StatusHot},
	{"dingin", StatusCold},
	{"cold", StatusCold},
	{"nyaman", StatusComfortable},
	{"normal", StatusComfortable},
	{"comfort", StatusComfortable},
	{"sejuk", StatusComfortable},
}

// StatusOf returns the comfort class of a prediction label.
func StatusOf(label string) Status {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == LabelNoModel || lower == LabelError {
		return StatusUnknown
	}
	for _, entry := range labelStatusMap {
		if strings.HasPrefix(lower, entry.prefix) {
			return entry.status
		}
	}
	return StatusComfortable
}

// Hint returns the short caption shown under the AI status metric.
func (s Status) Hint() string {
	switch s {
	case StatusHot:
		return "Bahaya"
	case StatusCold:
		return "Dingin"
	case StatusComfortable:
		return "Nyaman"
	default:
		return "n/a"
	}
}

// IsHot reports whether the label should raise the high-temperature alert.
func IsHot(label string) bool {
	return StatusOf(label) == StatusHot
}
