package toolserver

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionKey identifies the calling client session for workflow scoping.
// The SDK assigns an ID during initialization; the pointer form backstops
// transports that never set one.
func sessionKey(req *mcp.CallToolRequest) string {
	if req == nil || req.Session == nil {
		return "unidentified"
	}
	if id := req.Session.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("%p", req.Session)
}
