package provider

// Stats are one adapter's HTTP counters since the last reset. They are
// collected at generation start/end and surfaced in the run record.
type Stats struct {
	Requests        int64 `json:"requests"`
	Retries         int64 `json:"retries"`
	PreemptiveWaits int64 `json:"preemptive_waits"`
	ReactiveWaits   int64 `json:"reactive_waits"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Requests += other.Requests
	s.Retries += other.Retries
	s.PreemptiveWaits += other.PreemptiveWaits
	s.ReactiveWaits += other.ReactiveWaits
}

// StatsSource is implemented by adapters that track HTTP counters. The data
// service resets all sources at generation start and reads them at the end.
type StatsSource interface {
	ProviderStats() Stats
	ResetProviderStats()
}
