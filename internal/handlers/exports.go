package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/leadline-crm/apps/api/internal/httpx"
)

func setCSVHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s-%s.csv\"", name, time.Now().UTC().Format("20060102")))
}

func (s *Server) GetExportsPropertiesCSV(w http.ResponseWriter, r *http.Request) {
	properties, err := s.Store.ExportProperties(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to export properties", nil)
		return
	}

	setCSVHeaders(w, "properties")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id", "external_property_id", "external_lead_id", "apn_parcel_id",
		"address_line1", "address_line2", "city", "state", "zipcode", "county",
		"owner1_name", "owner2_name", "owner_location",
		"estimated_value", "equity_amount", "equity_percent", "mortgage_amount", "total_loan_balance",
		"sale_price", "sale_date", "tax_amount", "tax_year", "tax_delinquent",
		"property_type", "year_built", "total_bedrooms", "total_baths", "building_square_feet",
		"market_status", "lead_status", "list_name",
		"lead_temperature", "desk_status", "deal_stage", "source", "entry_date",
	})
	for _, p := range properties {
		_ = writer.Write([]string{
			p.ID.String(),
			csvString(p.ExternalPropertyID),
			csvString(p.ExternalLeadID),
			csvString(p.APNParcelID),
			p.AddressLine1,
			csvString(p.AddressLine2),
			p.City,
			p.State,
			p.Zipcode,
			csvString(p.County),
			csvString(p.Owner1Name),
			csvString(p.Owner2Name),
			csvString(p.OwnerLocation),
			csvFloat(p.EstimatedValue),
			csvFloat(p.EquityAmount),
			csvInt(p.EquityPercent),
			csvFloat(p.MortgageAmount),
			csvFloat(p.TotalLoanBalance),
			csvFloat(p.SalePrice),
			csvDate(p.SaleDate),
			csvFloat(p.TaxAmount),
			csvInt(p.TaxYear),
			csvString(p.TaxDelinquent),
			csvString(p.PropertyType),
			csvInt(p.YearBuilt),
			csvFloat(p.TotalBedrooms),
			csvFloat(p.TotalBaths),
			csvFloat(p.BuildingSquareFeet),
			csvString(p.MarketStatus),
			csvString(p.Status),
			csvString(p.ListName),
			p.LeadTemperature,
			p.DeskStatus,
			p.DealStage,
			p.Source,
			p.EntryDate.Format("2006-01-02"),
		})
	}
	writer.Flush()
}

func (s *Server) GetExportsContactsCSV(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.Store.ExportContacts(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to export contacts", nil)
		return
	}

	setCSVHeaders(w, "contacts")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id", "property_id", "property_address", "property_city",
		"name", "relationship", "age", "gender", "marital_status", "net_asset_value", "flags",
		"primary_phone", "primary_email", "dnc", "deceased",
	})
	for _, c := range contacts {
		_ = writer.Write([]string{
			c.ID.String(),
			c.PropertyID.String(),
			c.PropertyAddress,
			c.PropertyCity,
			c.Name,
			csvString(c.Relationship),
			csvInt(c.Age),
			csvString(c.Gender),
			csvString(c.MaritalStatus),
			csvFloat(c.NetAssetValue),
			csvString(c.Flags),
			csvString(c.PrimaryPhone),
			csvString(c.PrimaryEmail),
			strconv.FormatBool(c.DNC),
			strconv.FormatBool(c.Deceased),
		})
	}
	writer.Flush()
}

func csvString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func csvInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func csvDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}
