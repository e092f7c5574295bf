package toolserver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekamcp/internal/domain"
)

func TestProtocolTags_ListsCorpusWithoutCandidate(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	result := callTool(t, session, toolProtocolTags, map[string]any{})

	var got tagDirectoryResult
	decodeResult(t, result, &got)

	expect := tagDirectoryResult{
		SupportedTags: []domain.Tag{
			{Name: "diabetes", Description: "Type 2 diabetes mellitus"},
			{Name: "hypertension", Description: "Essential hypertension"},
		},
		NextStep: "confirm one of these tags by calling protocol_tags with the tag argument",
	}
	if diff := cmp.Diff(expect, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestProtocolTags_ConfirmsKnownTagCaseInsensitively(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	result := callTool(t, session, toolProtocolTags, map[string]any{"tag": "  Diabetes "})

	var got tagConfirmedResult
	decodeResult(t, result, &got)
	assert.Equal(t, "diabetes", got.ConfirmedTag.Name)
	assert.Equal(t, domain.StateTagConfirmed, got.State)
	assert.Contains(t, got.NextStep, "protocol_publishers")
}

func TestProtocolTags_UnknownTagReturnsOptions(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	result := callTool(t, session, toolProtocolTags, map[string]any{"tag": "oncology"})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeNotFound, payload.Code)
	assert.Equal(t, "diabetes, hypertension", payload.Meta[domain.MetaSupportedTags])
}

func TestProtocolPublishers_RequiresConfirmedTag(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	result := callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "ICMR"})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeUnconfirmedWorkflowStep, payload.Code)
	assert.Contains(t, payload.Meta[domain.MetaRequiredStep], "protocol_tags")
	assert.Equal(t, "diabetes, hypertension", payload.Meta[domain.MetaSupportedTags])
}

func TestProtocolPublishers_ListsForConfirmedTag(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	result := callTool(t, session, toolProtocolPublishers, map[string]any{})

	var got publisherDirectoryResult
	decodeResult(t, result, &got)
	assert.Equal(t, "diabetes", got.Tag)
	assert.Equal(t, []string{"ICMR", "RSSDI"}, domain.PublisherNames(got.Publishers))
}

func TestProtocolPublishers_ConfirmsPublisher(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	result := callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "rssdi"})

	var got publisherConfirmedResult
	decodeResult(t, result, &got)
	assert.Equal(t, "diabetes", got.Tag)
	assert.Equal(t, "RSSDI", got.ConfirmedPublisher.Name)
	assert.Equal(t, domain.StatePublisherConfirmed, got.State)
}

func TestProtocolPublishers_UnknownPublisherReturnsOptions(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	result := callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "WHO"})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeNotFound, payload.Code)
	assert.Equal(t, "ICMR, RSSDI", payload.Meta[domain.MetaValidPublishers])
	assert.Equal(t, "diabetes", payload.Meta[domain.MetaConfirmedTag])
}

func TestSearchProtocols_FullWorkflow(t *testing.T) {
	backend := healthcareBackend()
	session := connectClient(t, newTestServer(t, backend))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "RSSDI"})
	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "first-line therapy"})

	var got protocolSearchResult
	decodeResult(t, result, &got)

	expectQuery := domain.ProtocolQuery{Tag: "diabetes", Publisher: "RSSDI", Query: "first-line therapy"}
	if diff := cmp.Diff(expectQuery, got.Query); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, got.Count)

	// The JSON summary is followed by the rendered pages.
	require.Len(t, result.Content, 3)
	first, ok := result.Content[1].(*mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", first.MIMEType)
	assert.Equal(t, []byte("jpeg-bytes-1"), first.Data)
	second, ok := result.Content[2].(*mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", second.MIMEType)
	assert.Equal(t, []byte("png-bytes-2"), second.Data)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.queries, 1)
	assert.Equal(t, expectQuery, backend.queries[0])
}

func TestSearchProtocols_RepeatableUnderSameConfirmation(t *testing.T) {
	backend := healthcareBackend()
	session := connectClient(t, newTestServer(t, backend))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "RSSDI"})

	for _, query := range []string{"first-line therapy", "insulin escalation"} {
		result := callTool(t, session, toolSearchProtocols, map[string]any{"query": query})
		var got protocolSearchResult
		decodeResult(t, result, &got)
		assert.Equal(t, query, got.Query.Query)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Len(t, backend.queries, 2)
}

func TestSearchProtocols_OutOfOrderCallRejected(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "first-line therapy"})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeUnconfirmedWorkflowStep, payload.Code)
	assert.Contains(t, payload.Meta[domain.MetaRequiredStep], "protocol_tags")
}

func TestSearchProtocols_AfterTagOnlyRejected(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "first-line therapy"})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeUnconfirmedWorkflowStep, payload.Code)
	assert.Contains(t, payload.Meta[domain.MetaRequiredStep], "protocol_publishers")
	assert.Equal(t, "ICMR, RSSDI", payload.Meta[domain.MetaValidPublishers])
}

func TestSearchProtocols_ReconfirmingTagDropsPublisher(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "RSSDI"})
	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})

	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "first-line therapy"})
	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeUnconfirmedWorkflowStep, payload.Code)
	assert.Contains(t, payload.Meta[domain.MetaRequiredStep], "protocol_publishers")
}

func TestSearchProtocols_PageDownloadFailuresSkipped(t *testing.T) {
	backend := healthcareBackend()
	delete(backend.pages, "https://docs.example.com/rssdi/page1.jpg")
	session := connectClient(t, newTestServer(t, backend))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "RSSDI"})
	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "first-line therapy"})

	var got protocolSearchResult
	decodeResult(t, result, &got)
	// Both hits are reported in the summary; only the downloadable page
	// is attached as an image.
	assert.Equal(t, 2, got.Count)
	require.Len(t, result.Content, 2)
	img, ok := result.Content[1].(*mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes-2"), img.Data)
}

func TestSearchProtocols_BlankQueryRejected(t *testing.T) {
	session := connectClient(t, newTestServer(t, healthcareBackend()))

	callTool(t, session, toolProtocolTags, map[string]any{"tag": "diabetes"})
	callTool(t, session, toolProtocolPublishers, map[string]any{"publisher": "RSSDI"})
	result := callTool(t, session, toolSearchProtocols, map[string]any{"query": "   "})

	payload := decodeError(t, result)
	assert.Equal(t, domain.CodeInvalidArguments, payload.Code)
	assert.Contains(t, payload.Message, "query is required")
}
