package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const propertyColumns = `id, external_property_id, external_lead_id, apn_parcel_id,
	address_line1, address_line2, city, state, zipcode, county, subdivision_name,
	owner1_name, owner2_name, owner_location,
	estimated_value, equity_amount, equity_percent, mortgage_amount, total_loan_balance,
	sale_price, sale_date, tax_amount, tax_year, tax_delinquent, tax_delinquent_year,
	estimated_repair_cost, property_type, construction_type, year_built,
	total_bedrooms, total_baths, building_square_feet,
	market_status, status, list_name, lead_temperature, desk_status, deal_stage, source,
	raw_import, entry_date, stage_changed_at, created_at, updated_at`

func scanProperty(row interface{ Scan(dest ...any) error }) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID, &p.ExternalPropertyID, &p.ExternalLeadID, &p.APNParcelID,
		&p.AddressLine1, &p.AddressLine2, &p.City, &p.State, &p.Zipcode, &p.County, &p.SubdivisionName,
		&p.Owner1Name, &p.Owner2Name, &p.OwnerLocation,
		&p.EstimatedValue, &p.EquityAmount, &p.EquityPercent, &p.MortgageAmount, &p.TotalLoanBalance,
		&p.SalePrice, &p.SaleDate, &p.TaxAmount, &p.TaxYear, &p.TaxDelinquent, &p.TaxDelinquentYear,
		&p.EstimatedRepairCost, &p.PropertyType, &p.ConstructionType, &p.YearBuilt,
		&p.TotalBedrooms, &p.TotalBaths, &p.BuildingSquareFeet,
		&p.MarketStatus, &p.Status, &p.ListName, &p.LeadTemperature, &p.DeskStatus, &p.DealStage, &p.Source,
		&p.RawImport, &p.EntryDate, &p.StageChangedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Property{}, err
	}
	return p, nil
}

// CreateProperty inserts the given property and returns the stored row. Zero
// enum fields fall back to the schema defaults for a fresh lead.
func (s *Store) CreateProperty(ctx context.Context, p Property) (Property, error) {
	if p.LeadTemperature == "" {
		p.LeadTemperature = "TBD"
	}
	if p.DeskStatus == "" {
		p.DeskStatus = "BIN"
	}
	if p.DealStage == "" {
		p.DealStage = "NEW_LEAD"
	}
	if p.Source == "" {
		p.Source = "Manual"
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO properties (
			external_property_id, external_lead_id, apn_parcel_id,
			address_line1, address_line2, city, state, zipcode, county, subdivision_name,
			owner1_name, owner2_name, owner_location,
			estimated_value, equity_amount, equity_percent, mortgage_amount, total_loan_balance,
			sale_price, sale_date, tax_amount, tax_year, tax_delinquent, tax_delinquent_year,
			estimated_repair_cost, property_type, construction_type, year_built,
			total_bedrooms, total_baths, building_square_feet,
			market_status, status, list_name, lead_temperature, desk_status, deal_stage, source,
			raw_import
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39
		)
		RETURNING `+propertyColumns,
		p.ExternalPropertyID, p.ExternalLeadID, p.APNParcelID,
		p.AddressLine1, p.AddressLine2, p.City, p.State, p.Zipcode, p.County, p.SubdivisionName,
		p.Owner1Name, p.Owner2Name, p.OwnerLocation,
		p.EstimatedValue, p.EquityAmount, p.EquityPercent, p.MortgageAmount, p.TotalLoanBalance,
		p.SalePrice, p.SaleDate, p.TaxAmount, p.TaxYear, p.TaxDelinquent, p.TaxDelinquentYear,
		p.EstimatedRepairCost, p.PropertyType, p.ConstructionType, p.YearBuilt,
		p.TotalBedrooms, p.TotalBaths, p.BuildingSquareFeet,
		p.MarketStatus, p.Status, p.ListName, p.LeadTemperature, p.DeskStatus, p.DealStage, p.Source,
		p.RawImport,
	)
	created, err := scanProperty(row)
	if err != nil {
		return Property{}, fmt.Errorf("insert property: %w", err)
	}
	return created, nil
}

func (s *Store) GetPropertyByID(ctx context.Context, id uuid.UUID) (Property, error) {
	row := s.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	return scanProperty(row)
}

func (s *Store) findProperty(ctx context.Context, where string, args ...any) (*Property, error) {
	row := s.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE `+where+` LIMIT 1`, args...)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindPropertyByExternalID(ctx context.Context, externalID string) (*Property, error) {
	return s.findProperty(ctx, `external_property_id = $1`, externalID)
}

func (s *Store) FindPropertyByParcel(ctx context.Context, apn string) (*Property, error) {
	return s.findProperty(ctx, `apn_parcel_id = $1`, apn)
}

func (s *Store) FindPropertyByLeadID(ctx context.Context, leadID string) (*Property, error) {
	return s.findProperty(ctx, `external_lead_id = $1`, leadID)
}

// FindPropertyByAddress matches on normalized address line and city: lower
// case, periods stripped, whitespace collapsed. Callers pass comparison keys
// already normalized the same way import rows are.
func (s *Store) FindPropertyByAddress(ctx context.Context, addressKey, cityKey string) (*Property, error) {
	return s.findProperty(ctx,
		`btrim(regexp_replace(lower(replace(address_line1, '.', '')), '\s+', ' ', 'g')) = $1
		AND btrim(regexp_replace(lower(replace(city, '.', '')), '\s+', ' ', 'g')) = $2`,
		addressKey, cityKey)
}

type ListPropertiesParams struct {
	Query  string
	Limit  int
	Offset int
}

func (s *Store) ListProperties(ctx context.Context, params ListPropertiesParams) ([]Property, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE $1 = ''
		   OR address_line1 ILIKE '%' || $1 || '%'
		   OR city ILIKE '%' || $1 || '%'
		   OR owner1_name ILIKE '%' || $1 || '%'
		   OR apn_parcel_id ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		params.Query, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	properties := make([]Property, 0, params.Limit)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func (s *Store) CountProperties(ctx context.Context, query string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM properties
		WHERE $1 = ''
		   OR address_line1 ILIKE '%' || $1 || '%'
		   OR city ILIKE '%' || $1 || '%'
		   OR owner1_name ILIKE '%' || $1 || '%'
		   OR apn_parcel_id ILIKE '%' || $1 || '%'`,
		query).Scan(&count)
	return count, err
}

// UpdatePropertyImportFields applies only the non-nil fields; nil fields keep
// their stored values.
func (s *Store) UpdatePropertyImportFields(ctx context.Context, id uuid.UUID, f PropertyImportFields) (Property, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE properties SET
			owner1_name = COALESCE($2, owner1_name),
			owner2_name = COALESCE($3, owner2_name),
			owner_location = COALESCE($4, owner_location),
			estimated_value = COALESCE($5, estimated_value),
			equity_amount = COALESCE($6, equity_amount),
			equity_percent = COALESCE($7, equity_percent),
			mortgage_amount = COALESCE($8, mortgage_amount),
			total_loan_balance = COALESCE($9, total_loan_balance),
			sale_price = COALESCE($10, sale_price),
			sale_date = COALESCE($11, sale_date),
			tax_amount = COALESCE($12, tax_amount),
			tax_year = COALESCE($13, tax_year),
			tax_delinquent = COALESCE($14, tax_delinquent),
			tax_delinquent_year = COALESCE($15, tax_delinquent_year),
			estimated_repair_cost = COALESCE($16, estimated_repair_cost),
			property_type = COALESCE($17, property_type),
			construction_type = COALESCE($18, construction_type),
			year_built = COALESCE($19, year_built),
			total_bedrooms = COALESCE($20, total_bedrooms),
			total_baths = COALESCE($21, total_baths),
			building_square_feet = COALESCE($22, building_square_feet),
			market_status = COALESCE($23, market_status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+propertyColumns,
		id,
		f.Owner1Name, f.Owner2Name, f.OwnerLocation,
		f.EstimatedValue, f.EquityAmount, f.EquityPercent, f.MortgageAmount, f.TotalLoanBalance,
		f.SalePrice, f.SaleDate, f.TaxAmount, f.TaxYear, f.TaxDelinquent, f.TaxDelinquentYear,
		f.EstimatedRepairCost, f.PropertyType, f.ConstructionType, f.YearBuilt,
		f.TotalBedrooms, f.TotalBaths, f.BuildingSquareFeet, f.MarketStatus,
	)
	return scanProperty(row)
}

// PropertyPatch is the manual partial-update surface. DealStage changes also
// bump stage_changed_at.
type PropertyPatch struct {
	Owner1Name      *string
	Owner2Name      *string
	MarketStatus    *string
	Status          *string
	ListName        *string
	LeadTemperature *string
	DeskStatus      *string
	DealStage       *string
}

func (s *Store) UpdatePropertyPatch(ctx context.Context, id uuid.UUID, patch PropertyPatch) (Property, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE properties SET
			owner1_name = COALESCE($2, owner1_name),
			owner2_name = COALESCE($3, owner2_name),
			market_status = COALESCE($4, market_status),
			status = COALESCE($5, status),
			list_name = COALESCE($6, list_name),
			lead_temperature = COALESCE($7, lead_temperature),
			desk_status = COALESCE($8, desk_status),
			deal_stage = COALESCE($9, deal_stage),
			stage_changed_at = CASE WHEN $9 IS NOT NULL AND $9 IS DISTINCT FROM deal_stage THEN now() ELSE stage_changed_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+propertyColumns,
		id,
		patch.Owner1Name, patch.Owner2Name, patch.MarketStatus, patch.Status,
		patch.ListName, patch.LeadTemperature, patch.DeskStatus, patch.DealStage,
	)
	return scanProperty(row)
}

func (s *Store) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) ExportProperties(ctx context.Context) ([]Property, error) {
	rows, err := s.db.Query(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	properties := make([]Property, 0, 256)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}
