package ekaapi

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"ekamcp/internal/domain"
)

// Protocol pages are rendered guideline images; they run larger than API
// payloads but still get a hard bound.
const maxDocumentBytes = 16 << 20

// FetchDocument downloads a protocol document referenced by a search hit.
// Document URLs are presigned by the upstream, so no Authorization header
// is attached. Returns the raw bytes and the MIME type, defaulting to
// image/jpeg when the store omits a content type.
func (c *Client) FetchDocument(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", domain.E(domain.CodeInvalidArguments, "fetch protocol document",
			fmt.Sprintf("invalid document url %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", domain.E(domain.CodeInternal, "fetch protocol document", "build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", classifyTransportError("fetch protocol document", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", domain.E(domain.CodeNotFound, "fetch protocol document", "document not found", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", domain.E(domain.CodeUpstreamUnavailable, "fetch protocol document",
			fmt.Sprintf("document store returned %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", domain.E(domain.CodeUpstreamUnavailable, "fetch protocol document", "read document body", err)
	}

	mimeType := "image/jpeg"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil && parsed != "" {
			mimeType = parsed
		}
	}
	return data, mimeType, nil
}
