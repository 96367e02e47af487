package chat

import (
	"time"

	"docchat/internal/api"
)

// State tracks an exchange through its lifecycle
type State string

const (
	StatePending  State = "pending"
	StateComplete State = "complete"
	StateErrored  State = "errored"
)

// Exchange is one question/answer pair in the transcript. A pending exchange
// has a placeholder answer and no sources or metrics.
type Exchange struct {
	ID        string
	Query     string
	Answer    string
	Sources   []api.Source
	Metrics   *api.QueryMetrics
	CreatedAt time.Time
	State     State
}

// placeholder texts shown while an answer is outstanding or after a failure
const (
	pendingAnswer = "Searching..."
	erroredAnswer = "Something went wrong. Please try again."
	emptyAnswer   = "Sorry, I don't have an answer."
)
