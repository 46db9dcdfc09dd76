package importer

import "strings"

// Canonical property field keys. Synonym tables map provider headers onto
// these; everything downstream (diff engine, executor) speaks canonical keys.
const (
	fieldExternalPropertyID = "external_property_id"
	fieldExternalLeadID     = "external_lead_id"
	fieldAPNParcelID        = "apn_parcel_id"

	fieldAddressLine1    = "address_line1"
	fieldAddressLine2    = "address_line2"
	fieldCity            = "city"
	fieldState           = "state"
	fieldZipcode         = "zipcode"
	fieldCounty          = "county"
	fieldSubdivisionName = "subdivision_name"

	fieldOwner1Name    = "owner1_name"
	fieldOwner2Name    = "owner2_name"
	fieldOwnerLocation = "owner_location"

	fieldEstimatedValue   = "estimated_value"
	fieldEquityAmount     = "equity_amount"
	fieldEquityPercent    = "equity_percent"
	fieldMortgageAmount   = "mortgage_amount"
	fieldTotalLoanBalance = "total_loan_balance"
	fieldSalePrice        = "sale_price"
	fieldSaleDate         = "sale_date"

	fieldTaxAmount           = "tax_amount"
	fieldTaxYear             = "tax_year"
	fieldTaxDelinquent       = "tax_delinquent"
	fieldTaxDelinquentYear   = "tax_delinquent_year"
	fieldEstimatedRepairCost = "estimated_repair_cost"

	fieldPropertyType       = "property_type"
	fieldConstructionType   = "construction_type"
	fieldYearBuilt          = "year_built"
	fieldTotalBedrooms      = "total_bedrooms"
	fieldTotalBaths         = "total_baths"
	fieldBuildingSquareFeet = "building_square_feet"

	fieldMarketStatus = "market_status"
	fieldLeadStatus   = "lead_status"
	fieldListName     = "list_name"
)

// fieldSynonyms binds a canonical key to its known header spellings, in
// precedence order. Providers are inconsistent ("sqft", "square feet",
// "building_square_feet" all occur in the wild), so the list is intentionally
// generous.
type fieldSynonyms struct {
	canonical string
	synonyms  []string
}

var propertyFields = []fieldSynonyms{
	{fieldExternalPropertyID, []string{"property_id", "propertyid"}},
	{fieldExternalLeadID, []string{"lead_id", "lead id", "leadid"}},
	{fieldAPNParcelID, []string{"apn_parcel_id", "apn", "parcel id", "parcel_id"}},

	{fieldAddressLine1, []string{"property_address_line_1", "address", "address line 1", "address_line_1", "street address", "street"}},
	{fieldAddressLine2, []string{"property_address_line_2", "address line 2", "address_line_2"}},
	{fieldCity, []string{"property_address_city", "city"}},
	{fieldState, []string{"property_address_state", "state"}},
	{fieldZipcode, []string{"property_address_zipcode", "zipcode", "zip", "zip_code", "zip code", "postal_code"}},
	{fieldCounty, []string{"property_address_county", "county"}},
	{fieldSubdivisionName, []string{"subdivision_name", "subdivision"}},

	{fieldOwner1Name, []string{"owner_1_name", "owner name", "owner1name", "owner_name", "owner"}},
	{fieldOwner2Name, []string{"owner_2_name", "owner2name"}},
	{fieldOwnerLocation, []string{"owner_location", "owner location"}},

	{fieldEstimatedValue, []string{"estimated_value", "estimated value", "value"}},
	{fieldEquityAmount, []string{"equity_amount", "equity amount", "equity"}},
	{fieldEquityPercent, []string{"equity_percent", "equity percent", "equity %"}},
	{fieldMortgageAmount, []string{"mortgage_amount", "mortgage amount", "mortgage"}},
	{fieldTotalLoanBalance, []string{"total_loan_balance", "loan balance"}},
	{fieldSalePrice, []string{"sale_price", "sale price", "last_sale_price"}},
	{fieldSaleDate, []string{"sale_date", "sale date", "last_sale_date"}},

	{fieldTaxAmount, []string{"tax_amt", "tax_amount", "tax amount", "taxes", "property_tax_amount"}},
	{fieldTaxYear, []string{"tax_year", "tax year"}},
	{fieldTaxDelinquent, []string{"tax_delinquent", "tax delinquent"}},
	{fieldTaxDelinquentYear, []string{"tax_delinquent_year"}},
	{fieldEstimatedRepairCost, []string{"estimated_repair_cost", "repair cost"}},

	{fieldPropertyType, []string{"property_type", "property type", "type"}},
	{fieldConstructionType, []string{"construction_type", "construction type"}},
	{fieldYearBuilt, []string{"year_built", "year built"}},
	{fieldTotalBedrooms, []string{"total_bedrooms", "bedrooms", "beds"}},
	{fieldTotalBaths, []string{"total_baths", "bathrooms", "baths"}},
	{fieldBuildingSquareFeet, []string{"building_square_feet", "sqft", "square feet", "total_sqft"}},

	{fieldMarketStatus, []string{"market_status", "market status", "mls_status"}},
	{fieldLeadStatus, []string{"lead_status"}},
	{fieldListName, []string{"list_name", "list name"}},
}

// Canonical contact-file field keys.
const (
	fieldPropertyAddress = "property_address"
	fieldPropertyCity    = "property_city"
	fieldPropertyState   = "property_state"
	fieldPropertyZipcode = "property_zipcode"

	fieldContactName    = "name"
	fieldFirstName      = "first_name"
	fieldLastName       = "last_name"
	fieldRelationship   = "relationship"
	fieldAge            = "age"
	fieldGender         = "gender"
	fieldMaritalStatus  = "marital_status"
	fieldNetAssetValue  = "net_asset_value"
	fieldContactFlags   = "flags"
	fieldMailingAddress = "mailing_address"
	fieldMailingCity    = "mailing_city"
	fieldMailingState   = "mailing_state"
	fieldMailingZipcode = "mailing_zipcode"
)

var contactFields = []fieldSynonyms{
	{fieldExternalLeadID, []string{"lead_id", "lead id", "leadid"}},
	{fieldAPNParcelID, []string{"apn_parcel_id", "apn", "associated_property_apn_parcel_id", "parcel id", "parcel_id"}},
	{fieldPropertyAddress, []string{"property_address_line_1", "address", "address line 1", "property address", "street"}},
	{fieldPropertyCity, []string{"property_address_city", "city"}},
	{fieldPropertyState, []string{"property_address_state", "state"}},
	{fieldPropertyZipcode, []string{"property_address_zipcode", "zipcode", "zip"}},

	{fieldContactName, []string{"name", "contact_name", "contact name", "full name", "full_name"}},
	{fieldFirstName, []string{"first_name", "first name"}},
	{fieldLastName, []string{"last_name", "last name"}},
	{fieldRelationship, []string{"relationship"}},
	{fieldAge, []string{"age"}},
	{fieldGender, []string{"gender"}},
	{fieldMaritalStatus, []string{"marital_status", "marital status"}},
	{fieldNetAssetValue, []string{"net_asset_value", "net asset value"}},
	{fieldContactFlags, []string{"contact_flags", "flags"}},
	{fieldMailingAddress, []string{"mailing_address", "mailing address"}},
	{fieldMailingCity, []string{"mailing_city", "mailing city"}},
	{fieldMailingState, []string{"mailing_state", "mailing state"}},
	{fieldMailingZipcode, []string{"mailing_zipcode", "mailing zip", "mailing_zip"}},
}

// normalizeHeader lowercases and trims a header cell. Excel exports from
// Windows tools often carry a UTF-8 BOM on the first column.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// mapRow projects a raw row onto canonical keys. For each canonical field the
// first synonym with a non-blank cell wins; fields with no usable cell are
// absent from the result. Unknown headers are dropped.
func mapRow(row RawRow, fields []fieldSynonyms) map[string]string {
	mapped := make(map[string]string, len(fields))
	for _, f := range fields {
		for _, syn := range f.synonyms {
			if v, ok := row[syn]; ok && strings.TrimSpace(v) != "" {
				mapped[f.canonical] = v
				break
			}
		}
	}
	return mapped
}

// MapPropertyRow projects a raw spreadsheet row onto canonical property keys.
func MapPropertyRow(row RawRow) map[string]string {
	return mapRow(row, propertyFields)
}

// MapContactRow projects a raw contact-file row onto canonical contact keys.
func MapContactRow(row RawRow) map[string]string {
	return mapRow(row, contactFields)
}

// DetectColumns reports which raw headers mapped to a canonical field, for
// the preview response.
func DetectColumns(headers []string, kind string) (detected []string, mapped map[string]string) {
	fields := propertyFields
	if kind == "contact" {
		fields = contactFields
	}
	synonymIndex := make(map[string]string)
	for _, f := range fields {
		for _, syn := range f.synonyms {
			if _, ok := synonymIndex[syn]; !ok {
				synonymIndex[syn] = f.canonical
			}
		}
	}

	mapped = make(map[string]string)
	for _, h := range headers {
		trimmed := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if trimmed == "" {
			continue
		}
		detected = append(detected, trimmed)
		if canonical, ok := synonymIndex[normalizeHeader(h)]; ok {
			mapped[trimmed] = canonical
		}
	}
	return detected, mapped
}

// BuildPropertyRecord normalizes a canonical-key row into a typed record.
// Fields that are blank or fail to parse stay nil.
func BuildPropertyRecord(mapped map[string]string) PropertyRecord {
	return PropertyRecord{
		ExternalPropertyID: CleanString(mapped[fieldExternalPropertyID]),
		ExternalLeadID:     CleanString(mapped[fieldExternalLeadID]),
		APNParcelID:        CleanString(mapped[fieldAPNParcelID]),

		AddressLine1:    CleanString(mapped[fieldAddressLine1]),
		AddressLine2:    CleanString(mapped[fieldAddressLine2]),
		City:            CleanString(mapped[fieldCity]),
		State:           cleanState(mapped[fieldState]),
		Zipcode:         CleanString(mapped[fieldZipcode]),
		County:          CleanString(mapped[fieldCounty]),
		SubdivisionName: CleanString(mapped[fieldSubdivisionName]),

		Owner1Name:    CleanString(mapped[fieldOwner1Name]),
		Owner2Name:    CleanString(mapped[fieldOwner2Name]),
		OwnerLocation: CleanString(mapped[fieldOwnerLocation]),

		EstimatedValue:   ParseNumber(mapped[fieldEstimatedValue]),
		EquityAmount:     ParseNumber(mapped[fieldEquityAmount]),
		EquityPercent:    ParsePercent(mapped[fieldEquityPercent]),
		MortgageAmount:   ParseNumber(mapped[fieldMortgageAmount]),
		TotalLoanBalance: ParseNumber(mapped[fieldTotalLoanBalance]),
		SalePrice:        ParseNumber(mapped[fieldSalePrice]),
		SaleDate:         ParseDate(mapped[fieldSaleDate]),

		TaxAmount:           ParseNumber(mapped[fieldTaxAmount]),
		TaxYear:             ParseInt(mapped[fieldTaxYear]),
		TaxDelinquent:       CleanString(mapped[fieldTaxDelinquent]),
		TaxDelinquentYear:   ParseInt(mapped[fieldTaxDelinquentYear]),
		EstimatedRepairCost: ParseNumber(mapped[fieldEstimatedRepairCost]),

		PropertyType:       CleanString(mapped[fieldPropertyType]),
		ConstructionType:   CleanString(mapped[fieldConstructionType]),
		YearBuilt:          ParseInt(mapped[fieldYearBuilt]),
		TotalBedrooms:      ParseNumber(mapped[fieldTotalBedrooms]),
		TotalBaths:         ParseNumber(mapped[fieldTotalBaths]),
		BuildingSquareFeet: ParseNumber(mapped[fieldBuildingSquareFeet]),

		MarketStatus: CleanString(mapped[fieldMarketStatus]),
		Status:       CleanString(mapped[fieldLeadStatus]),
		ListName:     CleanString(mapped[fieldListName]),
	}
}

// cleanState uppercases and truncates to the two-letter code.
func cleanState(raw string) *string {
	s := CleanString(raw)
	if s == nil {
		return nil
	}
	v := strings.ToUpper(*s)
	if len(v) > 2 {
		v = v[:2]
	}
	return &v
}
