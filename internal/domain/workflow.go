package domain

import "time"

// WorkflowState is the progressive-disclosure position of one client
// session within the protocol workflow. Clinical protocols vary materially
// by condition and publisher; the workflow exists to prevent returning
// protocol content for the wrong condition.
type WorkflowState string

const (
	// StateNoTag is the initial state: no condition confirmed yet.
	StateNoTag WorkflowState = "NO_TAG"
	// StateTagConfirmed means a tag passed the corpus membership check.
	StateTagConfirmed WorkflowState = "TAG_CONFIRMED"
	// StatePublisherConfirmed means a publisher passed the per-tag check.
	// Protocol search is reachable only here; the state is reusable for
	// repeated searches under the same tag/publisher.
	StatePublisherConfirmed WorkflowState = "PUBLISHER_CONFIRMED"
)

// Meta keys carried on workflow errors so the calling LLM can self-correct
// without another probe call.
const (
	MetaSupportedTags      = "supported_tags"
	MetaValidPublishers    = "valid_publishers"
	MetaRequiredStep       = "required_step"
	MetaConfirmedTag       = "confirmed_tag"
	MetaConfirmedPublisher = "confirmed_publisher"
)

// WorkflowSession is the per-session confirmation record. Sessions never
// share state; a zero value is a valid NO_TAG session.
type WorkflowSession struct {
	State     WorkflowState
	Tag       Tag
	Publisher Publisher
	UpdatedAt time.Time
}

// NewWorkflowSession returns a fresh session in the initial state.
func NewWorkflowSession() WorkflowSession {
	return WorkflowSession{State: StateNoTag, UpdatedAt: time.Now()}
}

// ConfirmTag records a successful tag membership check. Confirming a tag
// from any state resets the session to TAG_CONFIRMED and drops any
// previously confirmed publisher: re-confirmation is the documented reset
// path for a session.
func (s WorkflowSession) ConfirmTag(tag Tag) WorkflowSession {
	return WorkflowSession{
		State:     StateTagConfirmed,
		Tag:       tag,
		UpdatedAt: time.Now(),
	}
}

// ConfirmPublisher records a successful publisher check for the confirmed
// tag. Confirming again under the same tag replaces the publisher.
func (s WorkflowSession) ConfirmPublisher(pub Publisher) WorkflowSession {
	return WorkflowSession{
		State:     StatePublisherConfirmed,
		Tag:       s.Tag,
		Publisher: pub,
		UpdatedAt: time.Now(),
	}
}

// Touch refreshes the session timestamp without changing state.
func (s WorkflowSession) Touch() WorkflowSession {
	s.UpdatedAt = time.Now()
	return s
}

// HasTag reports whether a tag has been confirmed for this session.
func (s WorkflowSession) HasTag() bool {
	return s.State == StateTagConfirmed || s.State == StatePublisherConfirmed
}

// CanSearch reports whether protocol search is reachable.
func (s WorkflowSession) CanSearch() bool {
	return s.State == StatePublisherConfirmed
}

// RequiredStep names the confirmation the session still needs before the
// requested operation, for self-correcting error results.
func (s WorkflowSession) RequiredStep() string {
	switch s.State {
	case StateTagConfirmed:
		return "confirm a publisher with protocol_publishers"
	case StatePublisherConfirmed:
		return ""
	default:
		return "confirm a condition tag with protocol_tags"
	}
}
