// Package protocolflow enforces the progressive-disclosure workflow for
// treatment protocols: a session must confirm a condition tag, then a
// publisher for that tag, before protocol content can be searched.
// Skipping confirmation risks returning protocol content for the wrong
// condition; the guard exists to prevent that class of error.
package protocolflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

// ProtocolAPI is the slice of the Eka client the guard needs.
type ProtocolAPI interface {
	SupportedTags(ctx context.Context) ([]domain.Tag, error)
	PublishersByTag(ctx context.Context, tag string) ([]domain.Publisher, error)
	SearchProtocols(ctx context.Context, q domain.ProtocolQuery) ([]domain.ProtocolDocument, error)
}

// Options configures the guard.
type Options struct {
	API      ProtocolAPI
	Sessions *domain.SessionStore
	Logger   *zap.Logger
	Metrics  domain.Metrics
	// TagCacheTTL re-fetches the corpus after this long; zero means
	// fetch once per process.
	TagCacheTTL time.Duration
}

// Guard owns per-session workflow state plus the process-wide tag corpus
// cache. All methods are safe for concurrent sessions.
type Guard struct {
	api      ProtocolAPI
	sessions *domain.SessionStore
	logger   *zap.Logger
	metrics  domain.Metrics
	corpus   *corpusCache
}

// NewGuard builds a workflow guard around the given API slice.
func NewGuard(opts Options) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = domain.NewSessionStore(0, domain.DefaultMaxSessions)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Guard{
		api:      opts.API,
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
		corpus:   newCorpusCache(opts.API, opts.TagCacheTTL),
	}
}

// SupportedTags returns the tag corpus, fetching it from the upstream once
// and serving from memory afterwards.
func (g *Guard) SupportedTags(ctx context.Context) ([]domain.Tag, error) {
	return g.corpus.get(ctx)
}

// CachedTags returns the corpus only if it has already been fetched.
func (g *Guard) CachedTags() ([]domain.Tag, bool) {
	return g.corpus.peek()
}

// Session returns the current workflow state for a session key. Absent or
// expired entries read as a fresh NO_TAG session.
func (g *Guard) Session(sessionKey string) domain.WorkflowSession {
	if session, ok := g.sessions.Get(sessionKey); ok {
		return session
	}
	return domain.NewWorkflowSession()
}

// Reset drops all confirmations for a session.
func (g *Guard) Reset(sessionKey string) {
	g.sessions.Reset(sessionKey)
	g.setActiveSessions()
}

// ConfirmTag checks a candidate tag against the corpus. On a match the
// session moves to TAG_CONFIRMED (dropping any confirmed publisher — this
// is the reset path); on a miss the session is unchanged and the error
// carries the full supported-tag list.
func (g *Guard) ConfirmTag(ctx context.Context, sessionKey, candidate string) (domain.Tag, error) {
	if strings.TrimSpace(candidate) == "" {
		return domain.Tag{}, domain.E(domain.CodeInvalidArguments, "confirm tag", "tag is required", nil)
	}
	corpus, err := g.corpus.get(ctx)
	if err != nil {
		return domain.Tag{}, domain.Wrap(domain.CodeUpstreamUnavailable, "confirm tag", err)
	}

	tag, ok := domain.MatchTag(candidate, corpus)
	if !ok {
		notFound := domain.E(domain.CodeNotFound, "confirm tag",
			fmt.Sprintf("%q is not a supported condition tag", strings.TrimSpace(candidate)), nil)
		return domain.Tag{}, notFound.WithMeta(domain.MetaSupportedTags, joinNames(domain.TagNames(corpus)))
	}

	before := g.Session(sessionKey)
	after := before.ConfirmTag(tag)
	g.sessions.Put(sessionKey, after)
	g.observeTransition(before.State, after.State)
	g.setActiveSessions()

	g.logger.Debug("tag confirmed",
		zap.String("session", sessionKey),
		zap.String("tag", tag.Name),
	)
	return tag, nil
}

// ConfirmPublisher checks a candidate publisher against the publishers
// issuing protocols for the session's confirmed tag.
func (g *Guard) ConfirmPublisher(ctx context.Context, sessionKey, candidate string) (domain.Publisher, error) {
	session := g.Session(sessionKey)
	if !session.HasTag() {
		return domain.Publisher{}, g.unconfirmed(ctx, "confirm publisher", session)
	}
	if strings.TrimSpace(candidate) == "" {
		return domain.Publisher{}, domain.E(domain.CodeInvalidArguments, "confirm publisher", "publisher is required", nil)
	}

	publishers, err := g.api.PublishersByTag(ctx, session.Tag.Name)
	if err != nil {
		return domain.Publisher{}, domain.Wrap(domain.CodeUpstreamUnavailable, "confirm publisher", err)
	}

	publisher, ok := domain.MatchPublisher(candidate, publishers)
	if !ok {
		notFound := domain.E(domain.CodeNotFound, "confirm publisher",
			fmt.Sprintf("%q does not publish protocols for %q", strings.TrimSpace(candidate), session.Tag.Name), nil)
		return domain.Publisher{}, notFound.
			WithMeta(domain.MetaValidPublishers, joinNames(domain.PublisherNames(publishers))).
			WithMeta(domain.MetaConfirmedTag, session.Tag.Name)
	}

	after := session.ConfirmPublisher(publisher)
	g.sessions.Put(sessionKey, after)
	g.observeTransition(session.State, after.State)
	g.setActiveSessions()

	g.logger.Debug("publisher confirmed",
		zap.String("session", sessionKey),
		zap.String("tag", session.Tag.Name),
		zap.String("publisher", publisher.Name),
	)
	return publisher, nil
}

// Publishers lists the valid publishers for the session's confirmed tag
// without confirming one.
func (g *Guard) Publishers(ctx context.Context, sessionKey string) ([]domain.Publisher, error) {
	session := g.Session(sessionKey)
	if !session.HasTag() {
		return nil, g.unconfirmed(ctx, "list publishers", session)
	}
	publishers, err := g.api.PublishersByTag(ctx, session.Tag.Name)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUpstreamUnavailable, "list publishers", err)
	}
	return publishers, nil
}

// Search runs a protocol query for a fully confirmed session. The state is
// reusable: repeated searches under the same tag/publisher need no
// re-confirmation.
func (g *Guard) Search(ctx context.Context, sessionKey, query string) ([]domain.ProtocolDocument, domain.ProtocolQuery, error) {
	session := g.Session(sessionKey)
	if !session.CanSearch() {
		return nil, domain.ProtocolQuery{}, g.unconfirmed(ctx, "search protocols", session)
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ProtocolQuery{}, domain.E(domain.CodeInvalidArguments, "search protocols", "query is required", nil)
	}

	protocolQuery := domain.ProtocolQuery{
		Tag:       session.Tag.Name,
		Publisher: session.Publisher.Name,
		Query:     strings.TrimSpace(query),
	}
	docs, err := g.api.SearchProtocols(ctx, protocolQuery)
	if err != nil {
		return nil, protocolQuery, domain.Wrap(domain.CodeUpstreamUnavailable, "search protocols", err)
	}

	g.sessions.Put(sessionKey, session.Touch())
	return docs, protocolQuery, nil
}

// unconfirmed builds the out-of-order error, attaching the valid options
// for the step the session actually needs next.
func (g *Guard) unconfirmed(ctx context.Context, op string, session domain.WorkflowSession) *domain.Error {
	base := domain.E(domain.CodeUnconfirmedWorkflowStep, op,
		fmt.Sprintf("workflow step not confirmed: %s", session.RequiredStep()), nil).
		WithMeta(domain.MetaRequiredStep, session.RequiredStep())

	switch session.State {
	case domain.StateTagConfirmed:
		base = base.WithMeta(domain.MetaConfirmedTag, session.Tag.Name)
		if publishers, err := g.api.PublishersByTag(ctx, session.Tag.Name); err == nil {
			base = base.WithMeta(domain.MetaValidPublishers, joinNames(domain.PublisherNames(publishers)))
		}
	default:
		if corpus, err := g.corpus.get(ctx); err == nil {
			base = base.WithMeta(domain.MetaSupportedTags, joinNames(domain.TagNames(corpus)))
		}
	}
	return base
}

func (g *Guard) observeTransition(from, to domain.WorkflowState) {
	g.metrics.ObserveWorkflowTransition(from, to)
}

func (g *Guard) setActiveSessions() {
	g.metrics.SetActiveSessions(g.sessions.Len())
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
