package ekaapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekamcp/internal/domain"
)

// fakeUpstream stands in for the Eka API: auth endpoints plus a mux for
// data-plane routes registered per test.
type fakeUpstream struct {
	mux          *http.ServeMux
	server       *httptest.Server
	loginCalls   int
	refreshCalls int
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{mux: http.NewServeMux()}
	f.mux.HandleFunc("POST /connect-auth/v1/account/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls++
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["client_secret"] != "good-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid client credentials"}`))
			return
		}
		writeJSON(w, map[string]any{
			"access_token":  "login-token",
			"refresh_token": "refresh-token",
		})
	})
	f.mux.HandleFunc("POST /connect-auth/v1/account/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls++
		writeJSON(w, map[string]any{
			"access_token":  "fresh-token",
			"refresh_token": "next-refresh-token",
			"expires_in":    1800,
		})
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) client(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Options{
		Credentials: domain.Credentials{
			Host:         f.server.URL,
			ClientID:     "client-1",
			ClientSecret: "good-secret",
		},
		Settings: domain.DefaultSettings().Upstream,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(Options{Credentials: domain.Credentials{ClientID: "id", ClientSecret: "s"}})
	require.Error(t, err)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidArguments, code)
}

func TestNewClient_DefaultsMetricsToNoop(t *testing.T) {
	upstream := newFakeUpstream(t)
	client := upstream.client(t)

	require.NotNil(t, client.metrics)
	require.NotNil(t, client.tokens.metrics)
	// Instrumented paths must work without a wired recorder.
	require.NoError(t, client.Login(context.Background()))
}

func TestClient_SupportedTags(t *testing.T) {
	upstream := newFakeUpstream(t)
	var gotAuth string
	upstream.mux.HandleFunc("GET /eka-mcp/protocols/v1/tags", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, []map[string]string{
			{"text": "diabetes", "description": "Diabetes mellitus management"},
			{"name": "asthma"},
			{"text": ""},
		})
	})

	client := upstream.client(t)
	tags, err := client.SupportedTags(context.Background())
	require.NoError(t, err)

	require.Len(t, tags, 2)
	assert.Equal(t, "diabetes", tags[0].Name)
	assert.Equal(t, "Diabetes mellitus management", tags[0].Description)
	assert.Equal(t, "asthma", tags[1].Name)

	// Token comes from the login → refresh chain
	assert.Equal(t, "Bearer fresh-token", gotAuth)
	assert.Equal(t, 1, upstream.loginCalls)
	assert.Equal(t, 1, upstream.refreshCalls)
}

func TestClient_PublishersByTag(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.mux.HandleFunc("GET /eka-mcp/protocols/v1/publishers/tag", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "diabetes", r.URL.Query().Get("tag"))
		writeJSON(w, []map[string]string{
			{"id": "p1", "name": "ICMR", "tag": "diabetes"},
			{"id": "p2", "name": "RSSDI", "tag": "diabetes"},
			{"id": "p3", "name": ""},
		})
	})

	client := upstream.client(t)
	publishers, err := client.PublishersByTag(context.Background(), "diabetes")
	require.NoError(t, err)

	require.Len(t, publishers, 2)
	assert.Equal(t, "ICMR", publishers[0].Name)
	assert.Equal(t, "diabetes", publishers[0].TagReference)
}

func TestClient_PublishersByTag_RequiresTag(t *testing.T) {
	upstream := newFakeUpstream(t)
	client := upstream.client(t)

	_, err := client.PublishersByTag(context.Background(), "  ")
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidArguments, code)
}

func TestClient_SearchProtocols(t *testing.T) {
	upstream := newFakeUpstream(t)
	var gotBody protocolSearchRequest
	upstream.mux.HandleFunc("POST /eka-mcp/protocols/v1/search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, []map[string]string{
			{"title": "Management of T2DM", "publisher": "RSSDI", "tag": "diabetes", "url": "https://docs.example/p1.jpg"},
			{"title": "no url hit"},
		})
	})

	client := upstream.client(t)
	docs, err := client.SearchProtocols(context.Background(), domain.ProtocolQuery{
		Tag:       "diabetes",
		Publisher: "RSSDI",
		Query:     "first-line therapy",
	})
	require.NoError(t, err)

	require.Len(t, gotBody.Queries, 1)
	assert.Equal(t, "first-line therapy", gotBody.Queries[0].Query)
	assert.Equal(t, "diabetes", gotBody.Queries[0].Condition)
	assert.Equal(t, "RSSDI", gotBody.Queries[0].PublisherName)

	// Hits without a document URL are dropped
	require.Len(t, docs, 1)
	assert.Equal(t, "Management of T2DM", docs[0].Title)
}

func TestClient_SearchMedications(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.mux.HandleFunc("GET /eka-mcp/medications/v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "Paracetamol", q.Get("drug_name"))
		require.Equal(t, "Tablet", q.Get("form"))
		writeJSON(w, []map[string]string{
			{"name": "Paracetamol 650", "generic_composition": "Paracetamol", "manufacturer": "Acme", "form": "Tablet", "volume": "650"},
		})
	})

	client := upstream.client(t)
	drugs, err := client.SearchMedications(context.Background(), MedicationSearch{Name: "Paracetamol", Form: "Tablet"})
	require.NoError(t, err)

	require.Len(t, drugs, 1)
	assert.Equal(t, "Paracetamol", drugs[0].GenericComposition)
	assert.NotEmpty(t, drugs[0].GenericComposition)
}

func TestClient_SearchMedications_RequiresNameOrComposition(t *testing.T) {
	upstream := newFakeUpstream(t)
	client := upstream.client(t)

	_, err := client.SearchMedications(context.Background(), MedicationSearch{Form: "Tablet"})
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidArguments, code)
}

func TestClient_DrugInteractions_CanonicalPairOrder(t *testing.T) {
	upstream := newFakeUpstream(t)
	var bodies []interactionRequest
	upstream.mux.HandleFunc("POST /eka-mcp/medications/v1/interaction", func(w http.ResponseWriter, r *http.Request) {
		var body interactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		writeJSON(w, []map[string]string{
			{"drug_a": "Probenecid", "drug_b": "Oseltamivir", "severity": "c", "description": "monitor therapy"},
		})
	})

	client := upstream.client(t)
	first, err := client.DrugInteractions(context.Background(), "Probenecid", "Oseltamivir")
	require.NoError(t, err)
	second, err := client.DrugInteractions(context.Background(), "Oseltamivir", "Probenecid")
	require.NoError(t, err)

	// Both argument orders issue the identical sorted request
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, []string{"Oseltamivir", "Probenecid"}, bodies[0].DrugNames)

	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, domain.SeverityC, first[0].Severity)
}

func TestClient_StatusClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantCode  domain.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"token expired"}`, domain.CodeUpstreamUnauthorized, false},
		{"forbidden", http.StatusForbidden, ``, domain.CodeUpstreamUnauthorized, false},
		{"not found", http.StatusNotFound, ``, domain.CodeNotFound, false},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"unknown condition"}`, domain.CodeInvalidArguments, false},
		{"bad gateway", http.StatusBadGateway, ``, domain.CodeUpstreamUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := newFakeUpstream(t)
			upstream.mux.HandleFunc("GET /eka-mcp/protocols/v1/tags", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			client := upstream.client(t)
			_, err := client.SupportedTags(context.Background())
			require.Error(t, err)

			code, ok := domain.CodeFrom(err)
			require.True(t, ok)
			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, tc.retryable, domain.IsRetryable(err))
		})
	}
}

func TestClient_UpstreamMessageSurfaced(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.mux.HandleFunc("GET /eka-mcp/protocols/v1/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"condition must be lowercase"}`)
	})

	client := upstream.client(t)
	_, err := client.SupportedTags(context.Background())
	require.Error(t, err)
	assert.Equal(t, "condition must be lowercase", domain.MetaFrom(err)["upstream_message"])
}

func TestUpstreamMessage_TruncatesOnRuneBoundary(t *testing.T) {
	// 300 bytes of three-byte runes: the 256-byte limit lands mid-rune.
	body := []byte(strings.Repeat("日", 100))

	msg := upstreamMessage(body)
	assert.LessOrEqual(t, len(msg), 256)
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, strings.Repeat("日", 85), msg)
}

func TestClient_TransportFailureIsRetryable(t *testing.T) {
	upstream := newFakeUpstream(t)
	client := upstream.client(t)
	// Log in first so the data call is the one that fails
	require.NoError(t, client.Login(context.Background()))
	upstream.server.Close()

	_, err := client.SupportedTags(context.Background())
	require.Error(t, err)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUpstreamUnavailable, code)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_FetchDocument(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.mux.HandleFunc("GET /docs/guideline.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	client := upstream.client(t)

	data, mime, err := client.FetchDocument(context.Background(), upstream.server.URL+"/docs/guideline.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("png-bytes"), data)

	_, _, err = client.FetchDocument(context.Background(), upstream.server.URL+"/docs/missing")
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeNotFound, code)

	_, _, err = client.FetchDocument(context.Background(), "ftp://docs.example/file")
	code, ok = domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidArguments, code)
}
