package domain

import (
	"strings"
	"time"
)

// Credentials carries the remote API coordinates supplied at process start.
// The triple is immutable for the process lifetime; the secret never
// appears in logs or tool results.
type Credentials struct {
	Host         string
	ClientID     string
	ClientSecret string
}

// Validate collects the missing pieces of the credential triple.
func (c Credentials) Validate() []string {
	var issues []string
	if strings.TrimSpace(c.Host) == "" {
		issues = append(issues, "eka-api-host is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		issues = append(issues, "client-id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		issues = append(issues, "client-secret (or client-token) is required")
	}
	return issues
}

// TokenStatus is a redacted view of the access-token state for health
// reporting. It never carries token material.
type TokenStatus struct {
	HasToken    bool      `json:"has_token"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}

// Tag is a supported clinical condition keyword. Protocol queries are only
// valid for tags present in the corpus returned by the tags endpoint.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Publisher is an authoritative body that issues treatment protocols for a
// given tag.
type Publisher struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	TagReference string `json:"tag_reference,omitempty"`
}

// Drug is a single medication search hit, sourced entirely from the remote
// corpus.
type Drug struct {
	Name               string `json:"name"`
	GenericComposition string `json:"generic_composition"`
	Manufacturer       string `json:"manufacturer,omitempty"`
	Form               string `json:"form,omitempty"`
	Volume             string `json:"volume,omitempty"`
}

// Severity is the standardized drug-interaction risk classification.
type Severity string

const (
	// SeverityX: avoid combination.
	SeverityX Severity = "X"
	// SeverityA: no known interaction.
	SeverityA Severity = "A"
	// SeverityB: no action needed.
	SeverityB Severity = "B"
	// SeverityC: monitor therapy.
	SeverityC Severity = "C"
	// SeverityD: consider therapy modification.
	SeverityD Severity = "D"
)

// IsValid reports whether s is one of the five documented severity codes.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityX, SeverityA, SeverityB, SeverityC, SeverityD:
		return true
	}
	return false
}

// Interaction describes the upstream risk assessment for a pair of generic
// compositions.
type Interaction struct {
	DrugA       string   `json:"drug_a"`
	DrugB       string   `json:"drug_b"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
}

// ProtocolQuery is a fully confirmed protocol search: both Tag and
// Publisher have passed membership checks for the calling session.
type ProtocolQuery struct {
	Tag       string `json:"tag"`
	Publisher string `json:"publisher"`
	Query     string `json:"query"`
}

// ProtocolDocument is a single protocol search hit. URL references the
// rendered guideline page served by the upstream document store.
type ProtocolDocument struct {
	Title     string `json:"title,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Tag       string `json:"tag,omitempty"`
	URL       string `json:"url"`
}

// NormalizeTerm canonicalizes a user-supplied tag or publisher candidate
// for membership checks.
func NormalizeTerm(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// MatchTag resolves a candidate string against the tag corpus,
// case-insensitively on the trimmed name.
func MatchTag(candidate string, corpus []Tag) (Tag, bool) {
	want := NormalizeTerm(candidate)
	if want == "" {
		return Tag{}, false
	}
	for _, tag := range corpus {
		if NormalizeTerm(tag.Name) == want {
			return tag, true
		}
	}
	return Tag{}, false
}

// MatchPublisher resolves a candidate string against the publishers listed
// for a confirmed tag.
func MatchPublisher(candidate string, publishers []Publisher) (Publisher, bool) {
	want := NormalizeTerm(candidate)
	if want == "" {
		return Publisher{}, false
	}
	for _, pub := range publishers {
		if NormalizeTerm(pub.Name) == want {
			return pub, true
		}
	}
	return Publisher{}, false
}

// TagNames projects the corpus to its display names, preserving order.
func TagNames(corpus []Tag) []string {
	names := make([]string, 0, len(corpus))
	for _, tag := range corpus {
		names = append(names, tag.Name)
	}
	return names
}

// PublisherNames projects a publisher list to its display names.
func PublisherNames(publishers []Publisher) []string {
	names := make([]string, 0, len(publishers))
	for _, pub := range publishers {
		names = append(names, pub.Name)
	}
	return names
}
