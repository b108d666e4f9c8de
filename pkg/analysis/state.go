package analysis

// ResponseState tracks a submitted response through the pipeline
type ResponseState int

const (
	StateSubmitted ResponseState = iota
	StatePreliminaryDelivered
	StateQueued
	StateProcessing
	StateComprehensiveDelivered
	StateDelivered // served from cache
	StateFailed
)

func (s ResponseState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePreliminaryDelivered:
		return "preliminary_delivered"
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	case StateComprehensiveDelivered:
		return "comprehensive_delivered"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is expected
func (s ResponseState) Terminal() bool {
	return s == StateComprehensiveDelivered || s == StateDelivered || s == StateFailed
}

// responseRecord is the orchestrator's bookkeeping for one response id.
// generation increases on every submission so that work started for an
// older submission can tell it has been superseded.
type responseRecord struct {
	state      ResponseState
	generation uint64
	completed  bool
}
