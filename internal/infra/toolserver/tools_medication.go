package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ekamcp/internal/domain"
	"ekamcp/internal/infra/ekaapi"
)

type medicationUnderstandingArgs struct {
	DrugName           string `json:"drug_name"`
	GenericComposition string `json:"generic_composition"`
	Form               string `json:"form"`
	Volume             string `json:"volume"`
}

type medicationUnderstandingResult struct {
	Drugs []domain.Drug `json:"drugs"`
	Count int           `json:"count"`
}

func (s *Server) handleMedicationUnderstanding(ctx context.Context, _ *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error) {
	const op = "medication understanding"

	var args medicationUnderstandingArgs
	if err := decodeArguments(s.schemas[toolMedicationUnderstanding], op, raw, &args); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(args.DrugName)
	composition := strings.TrimSpace(args.GenericComposition)
	if name == "" && composition == "" {
		return nil, nil, domain.E(domain.CodeInvalidArguments, op,
			"at least one of drug_name or generic_composition is required", nil)
	}

	drugs, err := s.medications.SearchMedications(ctx, ekaapi.MedicationSearch{
		Name:               name,
		GenericComposition: composition,
		Form:               strings.TrimSpace(args.Form),
		Volume:             strings.TrimSpace(args.Volume),
	})
	if err != nil {
		return nil, nil, err
	}
	return medicationUnderstandingResult{Drugs: drugs, Count: len(drugs)}, nil, nil
}

type medicationInteractionArgs struct {
	DrugNameA string `json:"drug_name_a"`
	DrugNameB string `json:"drug_name_b"`
}

type medicationInteractionResult struct {
	Interactions []domain.Interaction `json:"interactions"`
	// Resolved maps each input name to the generic composition the
	// interaction check actually ran against.
	Resolved map[string]string `json:"resolved"`
}

func (s *Server) handleMedicationInteraction(ctx context.Context, _ *mcp.CallToolRequest, raw json.RawMessage) (any, []mcp.Content, error) {
	const op = "medication interaction"

	var args medicationInteractionArgs
	if err := decodeArguments(s.schemas[toolMedicationInteraction], op, raw, &args); err != nil {
		return nil, nil, err
	}
	nameA := strings.TrimSpace(args.DrugNameA)
	nameB := strings.TrimSpace(args.DrugNameB)
	if nameA == "" || nameB == "" {
		return nil, nil, domain.E(domain.CodeInvalidArguments, op,
			"drug_name_a and drug_name_b are both required", nil)
	}

	compositionA, err := s.resolveComposition(ctx, op, nameA)
	if err != nil {
		return nil, nil, err
	}
	compositionB, err := s.resolveComposition(ctx, op, nameB)
	if err != nil {
		return nil, nil, err
	}

	interactions, err := s.medications.DrugInteractions(ctx, compositionA, compositionB)
	if err != nil {
		return nil, nil, err
	}
	return medicationInteractionResult{
		Interactions: interactions,
		Resolved: map[string]string{
			nameA: compositionA,
			nameB: compositionB,
		},
	}, nil, nil
}

// resolveComposition maps a user-supplied drug name to its generic
// composition via medication search. The first hit carrying a composition
// wins; no hit means the drug is unknown and the check must not guess.
func (s *Server) resolveComposition(ctx context.Context, op, name string) (string, error) {
	drugs, err := s.medications.SearchMedications(ctx, ekaapi.MedicationSearch{Name: name})
	if err != nil {
		return "", err
	}
	for _, drug := range drugs {
		if composition := strings.TrimSpace(drug.GenericComposition); composition != "" {
			return composition, nil
		}
	}
	return "", domain.E(domain.CodeNotFound, op,
		fmt.Sprintf("drug %q not found", name), nil).WithMeta("drug_name", name)
}
