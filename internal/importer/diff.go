package importer

import (
	"strconv"

	"github.com/leadline-crm/apps/api/internal/store"
)

// propertyDiffField binds one comparable property field: its label for the
// preview UI plus accessors for the incoming and stored values, both
// rendered to display strings.
type propertyDiffField struct {
	key    string
	label  string
	newVal func(PropertyRecord) *string
	oldVal func(store.Property) *string
}

var propertyDiffFields = []propertyDiffField{
	{fieldOwner1Name, "Owner 1",
		func(r PropertyRecord) *string { return r.Owner1Name },
		func(p store.Property) *string { return p.Owner1Name }},
	{fieldOwner2Name, "Owner 2",
		func(r PropertyRecord) *string { return r.Owner2Name },
		func(p store.Property) *string { return p.Owner2Name }},
	{fieldEstimatedValue, "Estimated Value",
		func(r PropertyRecord) *string { return fmtFloat(r.EstimatedValue) },
		func(p store.Property) *string { return fmtFloat(p.EstimatedValue) }},
	{fieldEquityAmount, "Equity Amount",
		func(r PropertyRecord) *string { return fmtFloat(r.EquityAmount) },
		func(p store.Property) *string { return fmtFloat(p.EquityAmount) }},
	{fieldEquityPercent, "Equity %",
		func(r PropertyRecord) *string { return fmtInt(r.EquityPercent) },
		func(p store.Property) *string { return fmtInt(p.EquityPercent) }},
	{fieldMortgageAmount, "Mortgage",
		func(r PropertyRecord) *string { return fmtFloat(r.MortgageAmount) },
		func(p store.Property) *string { return fmtFloat(p.MortgageAmount) }},
	{fieldTotalLoanBalance, "Loan Balance",
		func(r PropertyRecord) *string { return fmtFloat(r.TotalLoanBalance) },
		func(p store.Property) *string { return fmtFloat(p.TotalLoanBalance) }},
	{fieldTaxAmount, "Tax Amount",
		func(r PropertyRecord) *string { return fmtFloat(r.TaxAmount) },
		func(p store.Property) *string { return fmtFloat(p.TaxAmount) }},
	{fieldTaxYear, "Tax Year",
		func(r PropertyRecord) *string { return fmtInt(r.TaxYear) },
		func(p store.Property) *string { return fmtInt(p.TaxYear) }},
	{fieldTaxDelinquent, "Tax Delinquent",
		func(r PropertyRecord) *string { return r.TaxDelinquent },
		func(p store.Property) *string { return p.TaxDelinquent }},
	{fieldPropertyType, "Property Type",
		func(r PropertyRecord) *string { return r.PropertyType },
		func(p store.Property) *string { return p.PropertyType }},
	{fieldYearBuilt, "Year Built",
		func(r PropertyRecord) *string { return fmtInt(r.YearBuilt) },
		func(p store.Property) *string { return fmtInt(p.YearBuilt) }},
	{fieldTotalBedrooms, "Bedrooms",
		func(r PropertyRecord) *string { return fmtFloat(r.TotalBedrooms) },
		func(p store.Property) *string { return fmtFloat(p.TotalBedrooms) }},
	{fieldTotalBaths, "Baths",
		func(r PropertyRecord) *string { return fmtFloat(r.TotalBaths) },
		func(p store.Property) *string { return fmtFloat(p.TotalBaths) }},
	{fieldBuildingSquareFeet, "Sqft",
		func(r PropertyRecord) *string { return fmtFloat(r.BuildingSquareFeet) },
		func(p store.Property) *string { return fmtFloat(p.BuildingSquareFeet) }},
	{fieldMarketStatus, "Market Status",
		func(r PropertyRecord) *string { return r.MarketStatus },
		func(p store.Property) *string { return p.MarketStatus }},
	{fieldOwnerLocation, "Owner Location",
		func(r PropertyRecord) *string { return r.OwnerLocation },
		func(p store.Property) *string { return p.OwnerLocation }},
	{fieldSalePrice, "Sale Price",
		func(r PropertyRecord) *string { return fmtFloat(r.SalePrice) },
		func(p store.Property) *string { return fmtFloat(p.SalePrice) }},
}

// DiffProperty compares an incoming record against a stored property over
// the fixed comparable-field list. A nil incoming value never produces a
// change; equality is judged on CompareKey forms so case and spacing noise
// does not trigger updates.
func DiffProperty(rec PropertyRecord, existing store.Property) []FieldChange {
	var changes []FieldChange
	for _, f := range propertyDiffFields {
		newVal := f.newVal(rec)
		if newVal == nil {
			continue
		}
		oldVal := f.oldVal(existing)
		if CompareKey(*newVal) == CompareKey(deref(oldVal)) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    f.key,
			Label:    f.label,
			OldValue: deref(oldVal),
			NewValue: *newVal,
		})
	}
	return changes
}

type contactDiffField struct {
	key    string
	label  string
	newVal func(ContactRecord) *string
	oldVal func(store.Contact) *string
}

var contactDiffFields = []contactDiffField{
	{fieldRelationship, "Relationship",
		func(r ContactRecord) *string { return r.Relationship },
		func(c store.Contact) *string { return c.Relationship }},
	{fieldAge, "Age",
		func(r ContactRecord) *string { return fmtInt(r.Age) },
		func(c store.Contact) *string { return fmtInt(c.Age) }},
	{fieldGender, "Gender",
		func(r ContactRecord) *string { return r.Gender },
		func(c store.Contact) *string { return c.Gender }},
	{fieldMaritalStatus, "Marital Status",
		func(r ContactRecord) *string { return r.MaritalStatus },
		func(c store.Contact) *string { return c.MaritalStatus }},
	{fieldNetAssetValue, "Net Asset Value",
		func(r ContactRecord) *string { return fmtFloat(r.NetAssetValue) },
		func(c store.Contact) *string { return fmtFloat(c.NetAssetValue) }},
	{fieldContactFlags, "Flags",
		func(r ContactRecord) *string { return r.Flags },
		func(c store.Contact) *string { return c.Flags }},
}

// DiffContact compares incoming contact demographics against a stored
// contact under the same blank-never-changes rule.
func DiffContact(rec ContactRecord, existing store.Contact) []FieldChange {
	var changes []FieldChange
	for _, f := range contactDiffFields {
		newVal := f.newVal(rec)
		if newVal == nil {
			continue
		}
		oldVal := f.oldVal(existing)
		if CompareKey(*newVal) == CompareKey(deref(oldVal)) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    f.key,
			Label:    f.label,
			OldValue: deref(oldVal),
			NewValue: *newVal,
		})
	}
	return changes
}

func fmtFloat(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	return &s
}

func fmtInt(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
