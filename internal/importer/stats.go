package importer

// Status is the terminal state of one processed feed item.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome reasons.
const (
	ReasonParseError     = "parse_error"
	ReasonDateParseError = "date_parse_error"
	ReasonPastEvent      = "past_event"
	ReasonAlreadyExists  = "already_exists"
	ReasonCreateError    = "create_error"
	ReasonStoreError     = "store_error"
)

// Outcome is the result of processing one feed item.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Stats tallies item outcomes. Values are immutable: Add and Merge return a
// new Stats rather than mutating shared counters.
type Stats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Add folds one outcome into the tally.
func (s Stats) Add(o Outcome) Stats {
	s.Total++
	switch o.Status {
	case StatusCreated:
		s.Created++
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	return s
}

// Merge folds another tally into this one.
func (s Stats) Merge(other Stats) Stats {
	s.Total += other.Total
	s.Created += other.Created
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	return s
}
