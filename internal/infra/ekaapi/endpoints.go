package ekaapi

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ekamcp/internal/domain"
)

// Endpoint identifiers, relative to the eka-mcp prefix. They double as the
// endpoint label on upstream metrics.
const (
	endpointTags            = "protocols/v1/tags"
	endpointPublishers      = "protocols/v1/publishers"
	endpointPublishersByTag = "protocols/v1/publishers/tag"
	endpointProtocolSearch  = "protocols/v1/search"
	endpointDrugSearch      = "medications/v1/search"
	endpointInteraction     = "medications/v1/interaction"
)

// MedicationSearch carries the medication lookup parameters. At least one
// of Name or GenericComposition must be set.
type MedicationSearch struct {
	Name               string
	GenericComposition string
	Form               string
	Volume             string
}

type tagDTO struct {
	Text        string `json:"text"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type publisherDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

type drugDTO struct {
	Name               string `json:"name"`
	GenericComposition string `json:"generic_composition"`
	Manufacturer       string `json:"manufacturer"`
	Form               string `json:"form"`
	Volume             string `json:"volume"`
}

type interactionDTO struct {
	DrugA       string `json:"drug_a"`
	DrugB       string `json:"drug_b"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type protocolDTO struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	Tag       string `json:"tag"`
	URL       string `json:"url"`
}

type protocolSearchRequest struct {
	Queries []protocolSearchQuery `json:"queries"`
}

type protocolSearchQuery struct {
	Query         string `json:"query"`
	Condition     string `json:"condition"`
	PublisherName string `json:"publisher_name"`
}

type interactionRequest struct {
	DrugNames []string `json:"drug_names"`
}

// SupportedTags fetches the full tag corpus. The upstream uses "text" for
// the display name; older deployments use "name".
func (c *Client) SupportedTags(ctx context.Context) ([]domain.Tag, error) {
	var dtos []tagDTO
	if err := c.do(ctx, http.MethodGet, endpointTags, nil, nil, &dtos); err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, 0, len(dtos))
	for _, dto := range dtos {
		name := strings.TrimSpace(dto.Text)
		if name == "" {
			name = strings.TrimSpace(dto.Name)
		}
		if name == "" {
			continue
		}
		tags = append(tags, domain.Tag{Name: name, Description: dto.Description})
	}
	return tags, nil
}

// PublisherDirectory fetches every known publisher regardless of tag. Used
// by connectivity probes, not by the gated publishers tool.
func (c *Client) PublisherDirectory(ctx context.Context) ([]domain.Publisher, error) {
	var dtos []publisherDTO
	if err := c.do(ctx, http.MethodGet, endpointPublishers, nil, nil, &dtos); err != nil {
		return nil, err
	}
	return mapPublishers(dtos), nil
}

// PublishersByTag fetches the publishers issuing protocols for one tag.
func (c *Client) PublishersByTag(ctx context.Context, tag string) ([]domain.Publisher, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, domain.E(domain.CodeInvalidArguments, "publishers by tag", "tag is required", nil)
	}
	query := url.Values{"tag": []string{tag}}
	var dtos []publisherDTO
	if err := c.do(ctx, http.MethodGet, endpointPublishersByTag, query, nil, &dtos); err != nil {
		return nil, err
	}
	return mapPublishers(dtos), nil
}

// SearchProtocols runs a confirmed protocol query.
func (c *Client) SearchProtocols(ctx context.Context, q domain.ProtocolQuery) ([]domain.ProtocolDocument, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.E(domain.CodeInvalidArguments, "search protocols", "query is required", nil)
	}
	body := protocolSearchRequest{
		Queries: []protocolSearchQuery{{
			Query:         q.Query,
			Condition:     q.Tag,
			PublisherName: q.Publisher,
		}},
	}
	var dtos []protocolDTO
	if err := c.do(ctx, http.MethodPost, endpointProtocolSearch, nil, body, &dtos); err != nil {
		return nil, err
	}
	docs := make([]domain.ProtocolDocument, 0, len(dtos))
	for _, dto := range dtos {
		if strings.TrimSpace(dto.URL) == "" {
			continue
		}
		docs = append(docs, domain.ProtocolDocument{
			Title:     dto.Title,
			Publisher: dto.Publisher,
			Tag:       dto.Tag,
			URL:       dto.URL,
		})
	}
	return docs, nil
}

// SearchMedications looks up drugs by branded name or generic composition.
func (c *Client) SearchMedications(ctx context.Context, search MedicationSearch) ([]domain.Drug, error) {
	if strings.TrimSpace(search.Name) == "" && strings.TrimSpace(search.GenericComposition) == "" {
		return nil, domain.E(domain.CodeInvalidArguments, "search medications",
			"drug_name or generic_composition is required", nil)
	}
	query := url.Values{}
	if search.Name != "" {
		query.Set("drug_name", search.Name)
	}
	if search.GenericComposition != "" {
		query.Set("generic_names", search.GenericComposition)
	}
	if search.Form != "" {
		query.Set("form", search.Form)
	}
	if search.Volume != "" {
		query.Set("volumes", search.Volume)
	}

	var dtos []drugDTO
	if err := c.do(ctx, http.MethodGet, endpointDrugSearch, query, nil, &dtos); err != nil {
		return nil, err
	}
	drugs := make([]domain.Drug, 0, len(dtos))
	for _, dto := range dtos {
		drugs = append(drugs, domain.Drug{
			Name:               dto.Name,
			GenericComposition: dto.GenericComposition,
			Manufacturer:       dto.Manufacturer,
			Form:               dto.Form,
			Volume:             dto.Volume,
		})
	}
	return drugs, nil
}

// DrugInteractions checks a pair of generic compositions. The pair is sent
// in sorted order so that (A,B) and (B,A) issue the identical request —
// interaction symmetry holds by construction.
func (c *Client) DrugInteractions(ctx context.Context, compositionA, compositionB string) ([]domain.Interaction, error) {
	a := strings.TrimSpace(compositionA)
	b := strings.TrimSpace(compositionB)
	if a == "" || b == "" {
		return nil, domain.E(domain.CodeInvalidArguments, "drug interactions",
			"two generic compositions are required", nil)
	}
	pair := []string{a, b}
	sort.Strings(pair)

	var dtos []interactionDTO
	if err := c.do(ctx, http.MethodPost, endpointInteraction, nil, interactionRequest{DrugNames: pair}, &dtos); err != nil {
		return nil, err
	}
	interactions := make([]domain.Interaction, 0, len(dtos))
	for _, dto := range dtos {
		severity := domain.Severity(strings.ToUpper(strings.TrimSpace(dto.Severity)))
		if !severity.IsValid() {
			c.logger.Warn("upstream returned unrecognized interaction severity",
				zap.String("severity", dto.Severity),
			)
		}
		interactions = append(interactions, domain.Interaction{
			DrugA:       dto.DrugA,
			DrugB:       dto.DrugB,
			Severity:    severity,
			Description: dto.Description,
		})
	}
	return interactions, nil
}

func mapPublishers(dtos []publisherDTO) []domain.Publisher {
	publishers := make([]domain.Publisher, 0, len(dtos))
	for _, dto := range dtos {
		if strings.TrimSpace(dto.Name) == "" {
			continue
		}
		publishers = append(publishers, domain.Publisher{
			ID:           dto.ID,
			Name:         dto.Name,
			TagReference: dto.Tag,
		})
	}
	return publishers
}
