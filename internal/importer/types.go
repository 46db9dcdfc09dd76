package importer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawRow is a spreadsheet row keyed by the lowercased, trimmed header text.
// Header casing and padding vary wildly between data providers, so lookups
// always go through the normalized key.
type RawRow map[string]string

// NewRawRow zips a header row with a data row. Short rows leave trailing
// columns absent; surplus cells without a header are dropped.
func NewRawRow(headers, cells []string) RawRow {
	row := make(RawRow, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if key == "" || i >= len(cells) {
			continue
		}
		row[key] = cells[i]
	}
	return row
}

// Get returns the cell for a normalized header key, empty when absent.
func (r RawRow) Get(key string) string {
	return r[key]
}

// PropertyRecord is one normalized property row. Nil fields were blank or
// unparseable in the source and must never overwrite stored data.
type PropertyRecord struct {
	ExternalPropertyID *string
	ExternalLeadID     *string
	APNParcelID        *string

	AddressLine1    *string
	AddressLine2    *string
	City            *string
	State           *string
	Zipcode         *string
	County          *string
	SubdivisionName *string

	Owner1Name    *string
	Owner2Name    *string
	OwnerLocation *string

	EstimatedValue   *float64
	EquityAmount     *float64
	EquityPercent    *int
	MortgageAmount   *float64
	TotalLoanBalance *float64
	SalePrice        *float64
	SaleDate         *time.Time

	TaxAmount           *float64
	TaxYear             *int
	TaxDelinquent       *string
	TaxDelinquentYear   *int
	EstimatedRepairCost *float64

	PropertyType       *string
	ConstructionType   *string
	YearBuilt          *int
	TotalBedrooms      *float64
	TotalBaths         *float64
	BuildingSquareFeet *float64

	MarketStatus *string
	Status       *string
	ListName     *string

	Contacts []ContactRecord
}

// PhoneRecord is one normalized phone with provider metadata.
type PhoneRecord struct {
	Number         string
	PhoneType      *string
	Carrier        *string
	ActivityStatus *string
	DNC            *bool
	Prepaid        *bool
	IsPrimary      bool
}

type EmailRecord struct {
	Email     string
	EmailType *string
	IsPrimary bool
}

type AddressRecord struct {
	AddressLine1 string
	City         *string
	State        *string
	Zip          *string
}

type SocialProfileRecord struct {
	Platform   string
	ProfileURL string
}

// ContactRecord is one normalized contact with nested channels.
type ContactRecord struct {
	Name          string
	FirstName     *string
	LastName      *string
	Relationship  *string
	Age           *int
	Gender        *string
	MaritalStatus *string
	NetAssetValue *float64
	Flags         *string

	Phones         []PhoneRecord
	Emails         []EmailRecord
	Addresses      []AddressRecord
	SocialProfiles []SocialProfileRecord
}

// Row statuses reported by preview and commit.
const (
	StatusNew      = "new"
	StatusUpdate   = "update"
	StatusUpToDate = "up_to_date"
)

// Match methods, in resolution priority order.
const (
	MatchExternalID = "external_id"
	MatchAPN        = "apn"
	MatchAddress    = "address"
	MatchLeadID     = "lead_id"
	MatchNone       = ""
)

// FieldChange is one cell-level difference surfaced in a preview.
type FieldChange struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// PropertyRowPreview is the preview verdict for one property row.
type PropertyRowPreview struct {
	RowIndex    int           `json:"rowIndex"`
	Status      string        `json:"status"`
	MatchMethod string        `json:"matchMethod,omitempty"`
	PropertyID  *uuid.UUID    `json:"propertyId,omitempty"`
	Address     string        `json:"address"`
	Changes     []FieldChange `json:"changes,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ContactRowPreview is the preview verdict for one contact-file row.
type ContactRowPreview struct {
	RowIndex      int           `json:"rowIndex"`
	Status        string        `json:"status"`
	ContactName   string        `json:"contactName"`
	PropertyID    *uuid.UUID    `json:"propertyId,omitempty"`
	PropertyMatch string        `json:"propertyMatch,omitempty"`
	Changes       []FieldChange `json:"changes,omitempty"`
	NewPhones     []string      `json:"newPhones,omitempty"`
	NewEmails     []string      `json:"newEmails,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// maxReportedErrors caps the per-run error list so a file with a broken
// layout does not balloon the summary payload.
const maxReportedErrors = 20

// Severity levels for per-row commit outcomes.
const (
	SeverityInfo  = "info"
	SeverityError = "error"
)

// Entity kinds reported in row outcomes.
const (
	EntityProperty = "property"
	EntityContact  = "contact"
)

// Per-row commit results.
const (
	ResultCreated  = "created"
	ResultUpdated  = "updated"
	ResultUpToDate = "up_to_date"
	ResultError    = "error"
)

// RowOutcome is the per-row record of what a commit did, keyed by the
// spreadsheet line number.
type RowOutcome struct {
	RowNumber  int    `json:"rowNumber"`
	Severity   string `json:"severity"`
	EntityType string `json:"entityType"`
	Result     string `json:"result"`
	Message    string `json:"message,omitempty"`
}

// CommitStats accumulates counts over a commit batch.
type CommitStats struct {
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	Skipped         int      `json:"skipped"`
	ContactsCreated int      `json:"contactsCreated"`
	ContactsUpdated int      `json:"contactsUpdated"`
	PhonesAdded     int      `json:"phonesAdded"`
	EmailsAdded     int      `json:"emailsAdded"`
	AddressesAdded  int      `json:"addressesAdded"`
	SkippedUpToDate int      `json:"skippedUpToDate"`
	Errors          []string `json:"errors"`
	TotalErrors     int      `json:"totalErrors"`

	Outcomes []RowOutcome `json:"-"`
}

// RecordError appends a row-scoped error message. rowIndex is zero-based over
// data rows; the reported number is the spreadsheet line, accounting for the
// header.
func (s *CommitStats) RecordError(rowIndex int, entityType string, err error) {
	s.TotalErrors++
	if len(s.Errors) < maxReportedErrors {
		s.Errors = append(s.Errors, fmt.Sprintf("Row %d: %v", rowIndex+2, err))
	}
	s.Outcomes = append(s.Outcomes, RowOutcome{
		RowNumber:  rowIndex + 2,
		Severity:   SeverityError,
		EntityType: entityType,
		Result:     ResultError,
		Message:    err.Error(),
	})
}

func (s *CommitStats) recordOutcome(rowIndex int, entityType, result string) {
	s.Outcomes = append(s.Outcomes, RowOutcome{
		RowNumber:  rowIndex + 2,
		Severity:   SeverityInfo,
		EntityType: entityType,
		Result:     result,
	})
}
