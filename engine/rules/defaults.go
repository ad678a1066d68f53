package rules

import "github.com/uadcheck/uadcheck/engine/core"

// DefaultRulesetVersion identifies the built-in registry document.
const DefaultRulesetVersion = "uad_1004_v1"

// DefaultDocument is the built-in UAD 1004 rule registry. Deployments with
// their own registry document load it through ParseRegistry instead.
func DefaultDocument() *Document {
	return &Document{
		Version: DefaultRulesetVersion,
		Rules: []Definition{
			{
				ID:       "REQ-contract-price",
				Scope:    ScopeRequirement,
				Field:    "contract.contract_price",
				When:     `contract.assignment_type == "Purchase"`,
				Severity: core.SeverityError,
			},
			{
				ID:       "REQ-contract-date",
				Scope:    ScopeRequirement,
				Field:    "contract.contract_date",
				When:     `contract.assignment_type == "Purchase"`,
				Severity: core.SeverityError,
			},
			{
				ID:       "X002",
				Scope:    ScopeCrossField,
				Field:    "subject.hoa_frequency",
				When:     `subject.pud_indicator == true`,
				Expr:     `subject.hoa_frequency != "None"`,
				Severity: core.SeverityWarn,
				Message:  "PUD projects must report the HOA payment interval",
			},
			{
				ID:    "X010",
				Scope: ScopeCrossField,
				Field: "subject.borrower_name",
				When: `contract.assignment_type == "Refinance" && ` +
					`has(subject.borrower_name) && has(subject.public_record_owner)`,
				Expr:     `lastName(subject.borrower_name) == lastName(subject.public_record_owner)`,
				Severity: core.SeverityWarn,
				Message: `Refinance borrower and public record owner do not share a last name ` +
					`(Borrower: {{ index .payload "subject" "borrower_name" }}; ` +
					`Public record owner: {{ index .payload "subject" "public_record_owner" }})`,
			},
			{
				ID:    "R-01",
				Scope: ScopeCrossField,
				Field: "appraiser.signature_present",
				When:  `appraiser.signature_present == true && has(appraiser.signature_date)`,
				Expr: `has(certifications.appraiser) && ` +
					`has(photos.front_exterior) && has(photos.rear_exterior) && has(photos.street_scene) && ` +
					`has(sections.section_a) && has(sections.section_b) && ` +
					`has(sections.section_c) && has(sections.section_d)`,
				Severity: core.SeverityError,
				Message: "Appraiser signature requires certifications, photo inventory, " +
					"and Sections A-D to be complete before finalizing the report",
			},
			{
				ID:       "R-12",
				Scope:    ScopeCrossField,
				Field:    "reconciliation.appraisal_type",
				When:     `has(reconciliation.appraisal_type) && reconciliation.appraisal_type.startsWith("Subject to")`,
				Severity: core.SeverityError,
				Message:  "Appraisal is made 'Subject to' conditions and needs review sign-off",
				Escalation: &EscalationPolicy{
					RequiresAcknowledgment: true,
					DowngradeTo:            core.SeverityWarn,
				},
			},
			{
				ID:        "R-13",
				Scope:     ScopeConditionConsistency,
				Field:     "sales_comparison",
				Severity:  core.SeverityError,
				Tolerance: 2,
			},
			{ID: "R-06.street", Scope: ScopeCrossSource, Emit: "R-06", Field: "subject.address.street"},
			{ID: "R-06.parcel", Scope: ScopeCrossSource, Emit: "R-06", Field: "subject.parcel_number"},
			{ID: "R-06.borrower", Scope: ScopeCrossSource, Emit: "R-06", Field: "subject.borrower_name"},
			{ID: "R-06.owner", Scope: ScopeCrossSource, Emit: "R-06", Field: "subject.public_record_owner"},
			{ID: "R-06.price", Scope: ScopeCrossSource, Emit: "R-06", Field: "contract.contract_price"},
		},
	}
}
