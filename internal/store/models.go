package store

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	CSRFToken  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastSeenAt time.Time
	CreatedAt  time.Time
}

// Principal is a session joined with its user, loaded on every
// authenticated request.
type Principal struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Email     string
	FullName  string
	Role      string
	CSRFToken string
	ExpiresAt time.Time
}

type Property struct {
	ID                  uuid.UUID
	ExternalPropertyID  *string
	ExternalLeadID      *string
	APNParcelID         *string
	AddressLine1        string
	AddressLine2        *string
	City                string
	State               string
	Zipcode             string
	County              *string
	SubdivisionName     *string
	Owner1Name          *string
	Owner2Name          *string
	OwnerLocation       *string
	EstimatedValue      *float64
	EquityAmount        *float64
	EquityPercent       *int
	MortgageAmount      *float64
	TotalLoanBalance    *float64
	SalePrice           *float64
	SaleDate            *time.Time
	TaxAmount           *float64
	TaxYear             *int
	TaxDelinquent       *string
	TaxDelinquentYear   *int
	EstimatedRepairCost *float64
	PropertyType        *string
	ConstructionType    *string
	YearBuilt           *int
	TotalBedrooms       *float64
	TotalBaths          *float64
	BuildingSquareFeet  *float64
	MarketStatus        *string
	Status              *string
	ListName            *string
	LeadTemperature     string
	DeskStatus          string
	DealStage           string
	Source              string
	RawImport           []byte
	EntryDate           time.Time
	StageChangedAt      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PropertyImportFields carries the subset of property columns an import row
// may refresh. Nil fields are left untouched by UpdatePropertyImportFields.
type PropertyImportFields struct {
	Owner1Name          *string
	Owner2Name          *string
	OwnerLocation       *string
	EstimatedValue      *float64
	EquityAmount        *float64
	EquityPercent       *int
	MortgageAmount      *float64
	TotalLoanBalance    *float64
	SalePrice           *float64
	SaleDate            *time.Time
	TaxAmount           *float64
	TaxYear             *int
	TaxDelinquent       *string
	TaxDelinquentYear   *int
	EstimatedRepairCost *float64
	PropertyType        *string
	ConstructionType    *string
	YearBuilt           *int
	TotalBedrooms       *float64
	TotalBaths          *float64
	BuildingSquareFeet  *float64
	MarketStatus        *string
}

type Contact struct {
	ID              uuid.UUID
	PropertyID      uuid.UUID
	Name            string
	FirstName       *string
	LastName        *string
	Relationship    *string
	Age             *int
	Gender          *string
	MaritalStatus   *string
	NetAssetValue   *float64
	Flags           *string
	IsDecisionMaker bool
	DNC             bool
	IsLitigator     bool
	Deceased        bool
	Hidden          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContactImportFields mirrors PropertyImportFields for contact rows.
type ContactImportFields struct {
	FirstName     *string
	LastName      *string
	Relationship  *string
	Age           *int
	Gender        *string
	MaritalStatus *string
	NetAssetValue *float64
	Flags         *string
}

type ContactPhone struct {
	ID             uuid.UUID
	ContactID      uuid.UUID
	PhoneNumber    string
	PhoneType      *string
	Carrier        *string
	DNC            *bool
	Prepaid        *bool
	ActivityStatus *string
	IsPrimary      bool
	CreatedAt      time.Time
}

type ContactEmail struct {
	ID        uuid.UUID
	ContactID uuid.UUID
	Email     string
	EmailType *string
	IsPrimary bool
	CreatedAt time.Time
}

type ContactAddress struct {
	ID           uuid.UUID
	ContactID    uuid.UUID
	AddressLine1 string
	City         *string
	State        *string
	Zipcode      *string
	AddressType  *string
	IsPrimary    bool
	CreatedAt    time.Time
}

type ContactSocialProfile struct {
	ID         uuid.UUID
	ContactID  uuid.UUID
	Platform   string
	ProfileURL string
	CreatedAt  time.Time
}

type ImportRun struct {
	ID              uuid.UUID
	CreatedByUserID *uuid.UUID
	Kind            string
	Mode            string
	Filename        string
	FileSHA256      string
	Status          string
	Summary         []byte
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

type ImportRowResult struct {
	ID          uuid.UUID
	ImportRunID uuid.UUID
	RowNumber   int
	Severity    string
	EntityType  string
	Result      string
	Message     string
	CreatedAt   time.Time
}

type MergeRecord struct {
	ID                uuid.UUID
	PrimaryPropertyID uuid.UUID
	MergedPropertyID  uuid.UUID
	MergedBy          *uuid.UUID
	Reason            *string
	MergedSnapshot    []byte
	CreatedAt         time.Time
}

type AuditEntry struct {
	UserID     *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  *string
	Metadata   []byte
}
