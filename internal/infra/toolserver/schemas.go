package toolserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ekamcp/internal/domain"
)

const (
	toolMedicationUnderstanding = "medication_understanding"
	toolMedicationInteraction   = "medication_interaction"
	toolProtocolTags            = "protocol_tags"
	toolProtocolPublishers      = "protocol_publishers"
	toolSearchProtocols         = "search_protocols"
)

func medicationUnderstandingTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        toolMedicationUnderstanding,
		Description: "Look up medications in the Eka drug corpus. Pass drug_name for a branded-name search (e.g. \"Dolo 650\") or generic_composition for a salt-level search (e.g. \"Paracetamol 650mg\"); at least one of the two is required. Narrow the results with the optional form (tablet, syrup, injection) and volume filters. Returns the matching drugs with their name, generic composition, manufacturer, form and volume.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"drug_name": map[string]any{
					"type":        "string",
					"description": "Branded medication name to search for, e.g. \"Dolo 650\".",
				},
				"generic_composition": map[string]any{
					"type":        "string",
					"description": "Generic composition (salt) to search for, e.g. \"Paracetamol 650mg\".",
				},
				"form": map[string]any{
					"type":        "string",
					"description": "Optional dosage form filter, e.g. \"tablet\" or \"syrup\".",
				},
				"volume": map[string]any{
					"type":        "string",
					"description": "Optional strength or volume filter, e.g. \"650mg\".",
				},
			},
			"required": []string{},
		},
	}
}

func medicationInteractionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        toolMedicationInteraction,
		Description: "Check two medications for known drug-drug interactions. Pass both names exactly as the user gave them; each is resolved to its generic composition first, so branded and generic spellings behave the same and the argument order never changes the answer. Severity codes: X avoid combination, A no known interaction, B no action needed, C monitor therapy, D consider therapy modification. The result includes the resolved compositions so you can show the user what was actually checked.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"drug_name_a": map[string]any{
					"type":        "string",
					"description": "First medication name, branded or generic.",
				},
				"drug_name_b": map[string]any{
					"type":        "string",
					"description": "Second medication name, branded or generic.",
				},
			},
			"required": []string{"drug_name_a", "drug_name_b"},
		},
	}
}

func protocolTagsTool(tags []string) *mcp.Tool {
	return &mcp.Tool{
		Name:        toolProtocolTags,
		Description: withSupportedTags("First step of the treatment-protocol workflow. Call without a tag to list the clinical condition tags the protocol library covers; call with a tag to confirm that condition for this session. Confirming a tag unlocks protocol_publishers; confirming a different tag later resets any confirmed publisher.", tags),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tag": map[string]any{
					"type":        "string",
					"description": "Condition tag to confirm, e.g. \"diabetes\". Omit to list the supported tags.",
				},
			},
			"required": []string{},
		},
	}
}

func protocolPublishersTool(tags []string) *mcp.Tool {
	return &mcp.Tool{
		Name:        toolProtocolPublishers,
		Description: withSupportedTags("Second step of the treatment-protocol workflow; requires a tag confirmed via protocol_tags. Call without a publisher to list the authoritative publishers for the confirmed condition; call with a publisher name to confirm it for this session. Confirming a publisher unlocks search_protocols.", tags),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"publisher": map[string]any{
					"type":        "string",
					"description": "Publisher name to confirm, e.g. \"ICMR\". Omit to list the publishers for the confirmed tag.",
				},
			},
			"required": []string{},
		},
	}
}

func searchProtocolsTool(tags []string) *mcp.Tool {
	return &mcp.Tool{
		Name:        toolSearchProtocols,
		Description: withSupportedTags("Final step of the treatment-protocol workflow; requires a confirmed tag and publisher. Searches the confirmed publisher's guidelines for the confirmed condition using your free-text query. Returns a JSON summary of the matching protocol pages followed by the rendered pages as images. Repeatable: run as many queries as needed under the same confirmation.", tags),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text query against the confirmed publisher's protocols, e.g. \"first-line therapy for newly diagnosed patients\".",
				},
			},
			"required": []string{"query"},
		},
	}
}

// withSupportedTags appends the fetched tag corpus to a protocol tool
// description so the model can pick a valid condition without a probe call.
func withSupportedTags(base string, tags []string) string {
	if len(tags) == 0 {
		return base
	}
	return base + " Supported condition tags: " + strings.Join(tags, ", ") + "."
}

// compileInputSchema resolves a tool's input schema for argument
// validation ahead of the handler. Schemas are static literals, so a
// failure here is a startup error, not a per-call one.
func compileInputSchema(tool *mcp.Tool) (*jsonschema.Resolved, error) {
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode %s input schema: %w", tool.Name, err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode %s input schema: %w", tool.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve %s input schema: %w", tool.Name, err)
	}
	return resolved, nil
}

// decodeArguments checks raw tool arguments against the resolved schema
// and unmarshals them into args. A nil or empty payload reads as {} so
// tools with no required fields accept bare calls.
func decodeArguments(resolved *jsonschema.Resolved, op string, raw json.RawMessage, args any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.E(domain.CodeInvalidArguments, op, "arguments must be a JSON object", err)
	}
	if resolved != nil {
		if err := resolved.Validate(decoded); err != nil {
			return domain.E(domain.CodeInvalidArguments, op, err.Error(), err)
		}
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return domain.E(domain.CodeInvalidArguments, op, "decode arguments", err)
	}
	return nil
}
