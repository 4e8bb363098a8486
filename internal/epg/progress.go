package epg

// Phase names progress events by pipeline stage.
type Phase string

const (
	PhaseTeams       Phase = "team_epg"
	PhaseEvents      Phase = "event_epg"
	PhaseLifecycle   Phase = "channel_lifecycle"
	PhasePersistence Phase = "persistence"
)

// ProgressEvent is one unit of run progress.
type ProgressEvent struct {
	Phase   Phase   `json:"phase"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Label   string  `json:"label,omitempty"`
	Percent float64 `json:"percent"`
}

// ProgressSink receives progress events. Implementations must not block;
// the orchestrator calls them inline.
type ProgressSink interface {
	Progress(ev ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ev ProgressEvent)

func (f ProgressFunc) Progress(ev ProgressEvent) { f(ev) }

// NopProgress discards events.
var NopProgress ProgressSink = ProgressFunc(func(ProgressEvent) {})

// emit computes the percent and forwards to the sink.
func emit(sink ProgressSink, phase Phase, current, total int, label string) {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	sink.Progress(ProgressEvent{Phase: phase, Current: current, Total: total, Label: label, Percent: pct})
}
