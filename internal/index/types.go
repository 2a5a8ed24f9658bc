package index

import "time"

// Stage identifies which phase of an indexing run a progress event
// belongs to.
type Stage string

const (
	StageScan    Stage = "scan"
	StageIndex   Stage = "index"
	StageCleanup Stage = "cleanup"
)

// Progress is one observer event emitted during an indexing run.
type Progress struct {
	Stage   Stage
	Current int
	Total   int
	Path    string // file currently being processed, relative to the root
	// Running counters as of this event, before any work on Path.
	Indexed   int
	Updated   int
	Unchanged int
	// ETA is the estimated time remaining. Zero until enough files have
	// been processed to make the estimate meaningful.
	ETA time.Duration
}

// Percent reports the run's completion as 0-100. Zero when the total is
// unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// ProgressFunc observes indexing progress. A nil observer is valid and
// disables reporting.
type ProgressFunc func(Progress)

// Result summarizes one indexing run over a single collection.
type Result struct {
	Collection     string        `json:"collection"`
	Scanned        int           `json:"scanned"`
	Indexed        int           `json:"indexed"`
	Updated        int           `json:"updated"`
	Unchanged      int           `json:"unchanged"`
	Removed        int           `json:"removed"`
	Skipped        int           `json:"skipped"` // whitespace-only files
	OrphanedPurged int           `json:"orphanedPurged"`
	NeedsEmbedding int           `json:"needsEmbedding"`
	Duration       time.Duration `json:"duration"`
}

// Changed reports whether the run altered the index at all.
func (r *Result) Changed() bool {
	return r.Indexed > 0 || r.Updated > 0 || r.Removed > 0 || r.OrphanedPurged > 0
}
