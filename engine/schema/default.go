package schema

// DefaultDocument is the built-in UAD 1004 canonical payload schema. Callers
// may load their own versioned document instead; the shape here mirrors the
// normalizer's canonical field paths.
func DefaultDocument() *Schema {
	return &Schema{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"version": "uad_1004_v1",
		"type":    "object",
		"required": []any{"subject", "contract"},
		"properties": map[string]any{
			"subject": map[string]any{
				"type":     "object",
				"required": []any{"address", "pud_indicator", "tax_year", "real_estate_taxes"},
				"properties": map[string]any{
					"address": map[string]any{
						"type":     "object",
						"required": []any{"street", "city", "state", "zip"},
						"properties": map[string]any{
							"street": map[string]any{"type": "string"},
							"city":   map[string]any{"type": "string"},
							"state":  map[string]any{"type": "string"},
							"zip":    map[string]any{"type": "string"},
						},
					},
					"county":        map[string]any{"type": []any{"string", "null"}},
					"parcel_number": map[string]any{"type": "string"},
					"pud_indicator": map[string]any{"type": "boolean"},
					"hoa_amount":    map[string]any{"type": "integer"},
					"hoa_frequency": map[string]any{
						"type": "string",
						"enum": []any{"None", "PerMonth", "PerYear"},
					},
					"tax_year":            map[string]any{"type": "string"},
					"real_estate_taxes":   map[string]any{"type": "integer"},
					"borrower_name":       map[string]any{"type": "string"},
					"public_record_owner": map[string]any{"type": "string"},
					"condition_code": map[string]any{
						"type": "string",
						"enum": []any{"C1", "C2", "C3", "C4", "C5", "C6"},
					},
				},
			},
			"contract": map[string]any{
				"type":     "object",
				"required": []any{"assignment_type"},
				"properties": map[string]any{
					"assignment_type": map[string]any{
						"type": "string",
						"enum": []any{"Purchase", "Refinance", "Other"},
					},
					"contract_price": map[string]any{"type": "integer"},
					"contract_date":  map[string]any{"type": "string"},
					"seller_owner_public_record": map[string]any{
						"type": "string",
						"enum": []any{"Yes", "No"},
					},
					"financial_assistance_flag":   map[string]any{"type": "boolean"},
					"financial_assistance_amount": map[string]any{"type": "integer"},
					"offered_for_sale_flag":       map[string]any{"type": "boolean"},
					"dom":                         map[string]any{"type": "string"},
					"offering_price":              map[string]any{"type": "integer"},
					"offering_date":               map[string]any{"type": "string"},
					"offering_data_source":        map[string]any{"type": "string"},
				},
			},
			"appraiser": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"signature_present": map[string]any{"type": "boolean"},
					"signature_date":    map[string]any{"type": "string"},
					"name":              map[string]any{"type": "string"},
					"license_number":    map[string]any{"type": "string"},
					"license_state":     map[string]any{"type": "string"},
				},
			},
		},
	}
}
