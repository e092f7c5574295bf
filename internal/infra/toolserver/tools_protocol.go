package toolserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/telemetry"
)

type protocolTagsArgs struct {
	Tag string `json:"tag"`
}

type tagDirectoryResult struct {
	SupportedTags []domain.Tag `json:"supported_tags"`
	NextStep      string       `json:"next_step"`
}

type tagConfirmedResult struct {
	ConfirmedTag domain.Tag           `json:"confirmed_tag"`
	State        domain.WorkflowState `json:"state"`
	NextStep     string               `json:"next_step"`
}

func (s *Server) handleProtocolTags(ctx context.Context, req *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error) {
	const op = "protocol tags"

	var args protocolTagsArgs
	if err := decodeArguments(s.schemas[toolProtocolTags], op, raw, &args); err != nil {
		return nil, nil, err
	}

	candidate := strings.TrimSpace(args.Tag)
	if candidate == "" {
		tags, err := s.guard.SupportedTags(ctx)
		if err != nil {
			return nil, nil, err
		}
		return tagDirectoryResult{
			SupportedTags: tags,
			NextStep:      "confirm one of these tags by calling protocol_tags with the tag argument",
		}, nil, nil
	}

	tag, err := s.guard.ConfirmTag(ctx, sessionKey(req), candidate)
	if err != nil {
		return nil, nil, err
	}
	return tagConfirmedResult{
		ConfirmedTag: tag,
		State:        domain.StateTagConfirmed,
		NextStep:     "confirm a publisher with protocol_publishers",
	}, nil, nil
}

type protocolPublishersArgs struct {
	Publisher string `json:"publisher"`
}

type publisherDirectoryResult struct {
	Tag        string             `json:"tag"`
	Publishers []domain.Publisher `json:"publishers"`
	NextStep   string             `json:"next_step"`
}

type publisherConfirmedResult struct {
	Tag                string               `json:"tag"`
	ConfirmedPublisher domain.Publisher     `json:"confirmed_publisher"`
	State              domain.WorkflowState `json:"state"`
	NextStep           string               `json:"next_step"`
}

func (s *Server) handleProtocolPublishers(ctx context.Context, req *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error) {
	const op = "protocol publishers"

	var args protocolPublishersArgs
	if err := decodeArguments(s.schemas[toolProtocolPublishers], op, raw, &args); err != nil {
		return nil, nil, err
	}
	key := sessionKey(req)

	candidate := strings.TrimSpace(args.Publisher)
	if candidate == "" {
		publishers, err := s.guard.Publishers(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		return publisherDirectoryResult{
			Tag:        s.guard.Session(key).Tag.Name,
			Publishers: publishers,
			NextStep:   "confirm one of these publishers by calling protocol_publishers with the publisher argument",
		}, nil, nil
	}

	publisher, err := s.guard.ConfirmPublisher(ctx, key, candidate)
	if err != nil {
		return nil, nil, err
	}
	return publisherConfirmedResult{
		Tag:                s.guard.Session(key).Tag.Name,
		ConfirmedPublisher: publisher,
		State:              domain.StatePublisherConfirmed,
		NextStep:           "query the confirmed protocols with search_protocols",
	}, nil, nil
}

type searchProtocolsArgs struct {
	Query string `json:"query"`
}

type protocolSearchResult struct {
	Query     domain.ProtocolQuery      `json:"query"`
	Documents []domain.ProtocolDocument `json:"documents"`
	Count     int                       `json:"count"`
}

func (s *Server) handleSearchProtocols(ctx context.Context, req *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error) {
	const op = "search protocols"

	var args searchProtocolsArgs
	if err := decodeArguments(s.schemas[toolSearchProtocols], op, raw, &args); err != nil {
		return nil, nil, err
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, nil, domain.E(domain.CodeInvalidArguments, op, "query is required", nil)
	}

	docs, confirmed, err := s.guard.Search(ctx, sessionKey(req), query)
	if err != nil {
		return nil, nil, err
	}

	payload := protocolSearchResult{Query: confirmed, Documents: docs, Count: len(docs)}
	return payload, s.fetchProtocolPages(ctx, docs), nil
}

// fetchProtocolPages downloads the rendered pages behind the search hits.
// A failed download drops that page from the result instead of failing the
// whole search.
func (s *Server) fetchProtocolPages(ctx context.Context, docs []domain.ProtocolDocument) []mcp.Content {
	logger := telemetry.CallLogger(ctx, s.logger)
	var pages []mcp.Content
	for _, doc := range docs {
		if strings.TrimSpace(doc.URL) == "" {
			continue
		}
		data, mimeType, err := s.documents.FetchDocument(ctx, doc.URL)
		if err != nil {
			logger.Warn("protocol page download failed",
				zap.String("url", doc.URL),
				zap.String("title", doc.Title),
				zap.Error(err),
			)
			continue
		}
		pages = append(pages, &mcp.ImageContent{Data: data, MIMEType: mimeType})
	}
	return pages
}
