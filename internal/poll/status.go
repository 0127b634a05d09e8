package poll

// Raw status strings reported by the Document API. The set is open-ended;
// anything else is treated as a not-yet-mapped no-op.
const (
	StatusAnalyzing  = "analyzing"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type StepState string

const (
	StepPending    StepState = "pending"
	StepProcessing StepState = "processing"
	StepCompleted  StepState = "completed"
)

// Step is one named phase of the processing display. Step order is fixed;
// only the state changes.
type Step struct {
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

// Snapshot is the local view of a job derived from polled statuses.
type Snapshot struct {
	JobID     string `json:"job_id"`
	RawStatus string `json:"raw_status"`
	Percent   int    `json:"percent"`
	Steps     []Step `json:"steps"`
	Reasoning string `json:"reasoning"`
	Completed bool   `json:"completed"`
	Failed    bool   `json:"failed"`
}

func defaultSteps() []Step {
	return []Step{
		{Name: "Analyzing document structure", State: StepPending},
		{Name: "Applying formatting rules", State: StepPending},
		{Name: "Finalizing document", State: StepPending},
	}
}

// newSnapshot is the pre-first-poll view: zero percent, all steps pending.
func newSnapshot(jobID string) Snapshot {
	return Snapshot{
		JobID:     jobID,
		Percent:   0,
		Steps:     defaultSteps(),
		Reasoning: "Waiting for the formatting service...",
	}
}

// applyStatus maps a raw backend status onto the previous snapshot. It is a
// pure function: the result depends only on its inputs, and unrecognized
// statuses return the previous snapshot unchanged.
func applyStatus(prev Snapshot, raw string) Snapshot {
	next := prev
	next.Steps = make([]Step, len(prev.Steps))
	copy(next.Steps, prev.Steps)

	switch raw {
	case StatusAnalyzing:
		next.RawStatus = raw
		next.Percent = 20
		next.Steps[0].State = StepProcessing
		for i := 1; i < len(next.Steps); i++ {
			next.Steps[i].State = StepPending
		}
		next.Reasoning = "Reading the document and detecting its structure."
	case StatusProcessing:
		next.RawStatus = raw
		next.Percent = 50
		next.Steps[0].State = StepCompleted
		if len(next.Steps) > 1 {
			next.Steps[1].State = StepProcessing
		}
		for i := 2; i < len(next.Steps); i++ {
			next.Steps[i].State = StepPending
		}
		next.Reasoning = "Applying the requested formatting to the document."
	case StatusCompleted:
		next.RawStatus = raw
		next.Percent = 100
		for i := range next.Steps {
			next.Steps[i].State = StepCompleted
		}
		next.Reasoning = "Formatting complete."
		next.Completed = true
	case StatusError:
		// progress and steps stay frozen at their last value
		next.RawStatus = raw
		next.Reasoning = "The formatting service reported an error. Please start over."
		next.Failed = true
	default:
		// not yet mapped: tolerate as a no-op tick
	}
	return next
}

// Terminal reports whether no further automatic transition will occur.
func (s Snapshot) Terminal() bool {
	return s.Completed || s.Failed
}
