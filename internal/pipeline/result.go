package pipeline

import "time"

// State is a step of one user's run.
type State string

const (
	StatePending    State = "PENDING"
	StateFetching   State = "FETCHING"
	StateEnriching  State = "ENRICHING"
	StateAssembling State = "ASSEMBLING"
	StatePersisting State = "PERSISTING"
	StateDone       State = "DONE"
	StateSkipped    State = "SKIPPED"
	StateFailed     State = "FAILED"
)

// Skip and failure reasons.
const (
	ReasonDigestExists = "digest already exists"
	ReasonNoSources    = "no active sources"
	ReasonNoNewContent = "no new content"
	ReasonNoAPIKey     = "no API key"
	ReasonDeadline     = "run deadline exceeded"
)

// UserResult records the outcome of one user's run.
type UserResult struct {
	UserID         string            `json:"userId"`
	Date           string            `json:"date"`
	State          State             `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	Error          string            `json:"error,omitempty"`
	DigestID       string            `json:"digestId,omitempty"`
	SourcesChecked int               `json:"sourcesChecked"`
	ItemsFetched   int               `json:"itemsFetched"`
	ItemsNew       int               `json:"itemsNew"`
	ItemsDropped   int               `json:"itemsDropped,omitempty"`
	SourceErrors   map[string]string `json:"sourceErrors,omitempty"`
	Delivered      bool              `json:"delivered"`
	Duration       time.Duration     `json:"durationNs"`
}

func (r *UserResult) skip(reason string) UserResult {
	r.State = StateSkipped
	r.Reason = reason
	return *r
}

func (r *UserResult) fail(reason string, err error) UserResult {
	r.State = StateFailed
	r.Reason = reason
	if err != nil {
		r.Error = err.Error()
	}
	return *r
}

// Summary counts results by state.
func Summary(results []UserResult) map[State]int {
	out := map[State]int{}
	for _, r := range results {
		out[r.State]++
	}
	return out
}
