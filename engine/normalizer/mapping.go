package normalizer

// MappingVersion identifies the raw-name to canonical-path table. Paths are
// stable across runs; bump the version when the table changes shape.
const MappingVersion = "uad_1004_v1"

// Kind selects the coercion applied to a raw field value.
type Kind string

const (
	KindText      Kind = "text"
	KindDate      Kind = "date"
	KindMoney     Kind = "money"
	KindBool      Kind = "bool"
	KindEnum      Kind = "enum"
	KindAddress   Kind = "address"
	KindHOAFreq   Kind = "hoa_frequency"
	KindDOM       Kind = "days_on_market"
	KindCondition Kind = "condition"
)

// FieldMapping binds one vendor field name to a canonical dot path.
type FieldMapping struct {
	Raw  string
	Path string
	Kind Kind
	// Aliases canonicalizes enum vocabulary, matched case- and
	// spacing-insensitively. Only meaningful for KindEnum.
	Aliases map[string]string
}

var assignmentAliases = map[string]string{
	"purchase transaction":  "Purchase",
	"purchase":              "Purchase",
	"refinance transaction": "Refinance",
	"refinance":             "Refinance",
	"other":                 "Other",
}

var yesNoAliases = map[string]string{
	"yes": "Yes",
	"no":  "No",
}

// defaultMappings is the declaration-ordered vendor vocabulary for the UAD
// 1004 extraction model. Raw names absent from this table stay in the raw
// snapshot and never enter the canonical tree.
var defaultMappings = []FieldMapping{
	{Raw: "Subject.PropertyAddress", Path: "subject.address", Kind: KindAddress},
	{Raw: "Subject.County", Path: "subject.county", Kind: KindText},
	{Raw: "Subject.AssessorParcelNumber", Path: "subject.parcel_number", Kind: KindText},
	{Raw: "Subject.BorrowerName", Path: "subject.borrower_name", Kind: KindText},
	{Raw: "Subject.OwnerOfPublicRecord", Path: "subject.public_record_owner", Kind: KindText},
	{Raw: "Subject.IsPud", Path: "subject.pud_indicator", Kind: KindBool},
	{Raw: "Subject.HoaAmount", Path: "subject.hoa_amount", Kind: KindMoney},
	{Raw: "Subject.HoaPaymentInterval", Path: "subject.hoa_frequency", Kind: KindHOAFreq},
	{Raw: "Subject.TaxYear", Path: "subject.tax_year", Kind: KindText},
	{Raw: "Subject.RealEstateTaxes", Path: "subject.real_estate_taxes", Kind: KindMoney},
	{Raw: "Improvements.Condition", Path: "subject.condition_code", Kind: KindCondition},
	{Raw: "Subject.AssignmentType", Path: "contract.assignment_type", Kind: KindEnum, Aliases: assignmentAliases},
	{Raw: "Contract.ContractPrice", Path: "contract.contract_price", Kind: KindMoney},
	{Raw: "Contract.ContractDate", Path: "contract.contract_date", Kind: KindDate},
	{
		Raw:     "Contract.IsPropertySellerOwnerOfPublicRecord",
		Path:    "contract.seller_owner_public_record",
		Kind:    KindEnum,
		Aliases: yesNoAliases,
	},
	{Raw: "Contract.FinancialAssistance", Path: "contract.financial_assistance_flag", Kind: KindBool},
	{Raw: "Contract.FinancialAssistanceAmount", Path: "contract.financial_assistance_amount", Kind: KindMoney},
	{Raw: "Contract.OfferedForSale", Path: "contract.offered_for_sale_flag", Kind: KindBool},
	{Raw: "Contract.DaysOnMarket", Path: "contract.dom", Kind: KindDOM},
	{Raw: "Contract.OfferingPrice", Path: "contract.offering_price", Kind: KindMoney},
	{Raw: "Contract.OfferingDate", Path: "contract.offering_date", Kind: KindDate},
	{Raw: "Contract.DataSources", Path: "contract.offering_data_source", Kind: KindText},
	{Raw: "Appraiser.Name", Path: "appraiser.name", Kind: KindText},
	{Raw: "Appraiser.LicenseNumber", Path: "appraiser.license_number", Kind: KindText},
	{Raw: "Appraiser.LicenseState", Path: "appraiser.license_state", Kind: KindText},
	{Raw: "Appraiser.SignaturePresent", Path: "appraiser.signature_present", Kind: KindBool},
	{Raw: "Appraiser.SignatureDate", Path: "appraiser.signature_date", Kind: KindDate},
}

// DefaultMappings returns a copy of the built-in mapping table.
func DefaultMappings() []FieldMapping {
	out := make([]FieldMapping, len(defaultMappings))
	copy(out, defaultMappings)
	return out
}
