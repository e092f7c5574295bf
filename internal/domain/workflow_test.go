package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowSession_InitialState(t *testing.T) {
	session := NewWorkflowSession()

	assert.Equal(t, StateNoTag, session.State)
	assert.False(t, session.HasTag())
	assert.False(t, session.CanSearch())
	assert.Contains(t, session.RequiredStep(), "protocol_tags")
}

func TestWorkflowSession_ConfirmTag(t *testing.T) {
	session := NewWorkflowSession().ConfirmTag(Tag{Name: "diabetes"})

	assert.Equal(t, StateTagConfirmed, session.State)
	assert.Equal(t, "diabetes", session.Tag.Name)
	assert.True(t, session.HasTag())
	assert.False(t, session.CanSearch())
	assert.Contains(t, session.RequiredStep(), "protocol_publishers")
}

func TestWorkflowSession_ConfirmPublisher(t *testing.T) {
	session := NewWorkflowSession().
		ConfirmTag(Tag{Name: "diabetes"}).
		ConfirmPublisher(Publisher{Name: "RSSDI"})

	assert.Equal(t, StatePublisherConfirmed, session.State)
	assert.Equal(t, "diabetes", session.Tag.Name)
	assert.Equal(t, "RSSDI", session.Publisher.Name)
	assert.True(t, session.CanSearch())
	assert.Empty(t, session.RequiredStep())
}

func TestWorkflowSession_ReconfirmTagResets(t *testing.T) {
	session := NewWorkflowSession().
		ConfirmTag(Tag{Name: "diabetes"}).
		ConfirmPublisher(Publisher{Name: "RSSDI"})
	require.True(t, session.CanSearch())

	// Confirming a new tag drops the publisher and returns to TAG_CONFIRMED
	session = session.ConfirmTag(Tag{Name: "asthma"})

	assert.Equal(t, StateTagConfirmed, session.State)
	assert.Equal(t, "asthma", session.Tag.Name)
	assert.Empty(t, session.Publisher.Name)
	assert.False(t, session.CanSearch())
}

func TestWorkflowSession_ReconfirmPublisherReplaces(t *testing.T) {
	session := NewWorkflowSession().
		ConfirmTag(Tag{Name: "diabetes"}).
		ConfirmPublisher(Publisher{Name: "RSSDI"}).
		ConfirmPublisher(Publisher{Name: "ICMR"})

	assert.Equal(t, StatePublisherConfirmed, session.State)
	assert.Equal(t, "ICMR", session.Publisher.Name)
	assert.Equal(t, "diabetes", session.Tag.Name)
}
