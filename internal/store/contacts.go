package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contactColumns = `id, property_id, name, first_name, last_name, relationship, age,
	gender, marital_status, net_asset_value, flags,
	is_decision_maker, dnc, is_litigator, deceased, hidden, created_at, updated_at`

func scanContact(row interface{ Scan(dest ...any) error }) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.Name, &c.FirstName, &c.LastName, &c.Relationship, &c.Age,
		&c.Gender, &c.MaritalStatus, &c.NetAssetValue, &c.Flags,
		&c.IsDecisionMaker, &c.DNC, &c.IsLitigator, &c.Deceased, &c.Hidden, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Store) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO contacts (
			property_id, name, first_name, last_name, relationship, age,
			gender, marital_status, net_asset_value, flags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+contactColumns,
		c.PropertyID, c.Name, c.FirstName, c.LastName, c.Relationship, c.Age,
		c.Gender, c.MaritalStatus, c.NetAssetValue, c.Flags,
	)
	created, err := scanContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return created, nil
}

// FindContactByName matches case-insensitively within one property, which is
// the contact identity rule for imports.
func (s *Store) FindContactByName(ctx context.Context, propertyID uuid.UUID, name string) (*Contact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE property_id = $1 AND lower(name) = lower($2)
		LIMIT 1`,
		propertyID, name)
	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListContactsByProperty(ctx context.Context, propertyID uuid.UUID) ([]Contact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE property_id = $1
		ORDER BY created_at`,
		propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]Contact, 0, 8)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) UpdateContactImportFields(ctx context.Context, id uuid.UUID, f ContactImportFields) (Contact, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE contacts SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			relationship = COALESCE($4, relationship),
			age = COALESCE($5, age),
			gender = COALESCE($6, gender),
			marital_status = COALESCE($7, marital_status),
			net_asset_value = COALESCE($8, net_asset_value),
			flags = COALESCE($9, flags),
			updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns,
		id,
		f.FirstName, f.LastName, f.Relationship, f.Age,
		f.Gender, f.MaritalStatus, f.NetAssetValue, f.Flags,
	)
	return scanContact(row)
}

// ReassignContacts moves contacts between properties during a merge. A contact
// whose name already exists on the target stays behind; FoldContactChannels
// must run first so its phones, emails, addresses, and social profiles survive
// the merged property's cascade delete.
func (s *Store) ReassignContacts(ctx context.Context, fromPropertyID, toPropertyID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE contacts SET property_id = $2, updated_at = now()
		WHERE property_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM contacts other
			WHERE other.property_id = $2 AND lower(other.name) = lower(contacts.name)
		  )`,
		fromPropertyID, toPropertyID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FoldContactChannels re-points the channel rows of source contacts whose name
// collides with a target-property contact onto that contact. Values the target
// already holds are skipped; moved rows lose their primary flag so the target
// contact's own designations stand. Channels of non-colliding contacts are
// untouched (ReassignContacts moves those contacts whole).
func (s *Store) FoldContactChannels(ctx context.Context, fromPropertyID, toPropertyID uuid.UUID) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"phones", `
			UPDATE contact_phones cp
			SET contact_id = tgt.id, is_primary = FALSE
			FROM contacts src, contacts tgt
			WHERE cp.contact_id = src.id
			  AND src.property_id = $1
			  AND tgt.property_id = $2
			  AND lower(tgt.name) = lower(src.name)
			  AND NOT EXISTS (
				SELECT 1 FROM contact_phones dup
				WHERE dup.contact_id = tgt.id AND dup.phone_number = cp.phone_number
			  )`},
		{"emails", `
			UPDATE contact_emails ce
			SET contact_id = tgt.id, is_primary = FALSE
			FROM contacts src, contacts tgt
			WHERE ce.contact_id = src.id
			  AND src.property_id = $1
			  AND tgt.property_id = $2
			  AND lower(tgt.name) = lower(src.name)
			  AND NOT EXISTS (
				SELECT 1 FROM contact_emails dup
				WHERE dup.contact_id = tgt.id AND lower(dup.email) = lower(ce.email)
			  )`},
		{"addresses", `
			UPDATE contact_addresses ca
			SET contact_id = tgt.id, is_primary = FALSE
			FROM contacts src, contacts tgt
			WHERE ca.contact_id = src.id
			  AND src.property_id = $1
			  AND tgt.property_id = $2
			  AND lower(tgt.name) = lower(src.name)
			  AND NOT EXISTS (
				SELECT 1 FROM contact_addresses dup
				WHERE dup.contact_id = tgt.id AND lower(dup.address_line1) = lower(ca.address_line1)
			  )`},
		{"social profiles", `
			UPDATE contact_social_profiles sp
			SET contact_id = tgt.id
			FROM contacts src, contacts tgt
			WHERE sp.contact_id = src.id
			  AND src.property_id = $1
			  AND tgt.property_id = $2
			  AND lower(tgt.name) = lower(src.name)
			  AND NOT EXISTS (
				SELECT 1 FROM contact_social_profiles dup
				WHERE dup.contact_id = tgt.id AND dup.profile_url = sp.profile_url
			  )`},
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt.sql, fromPropertyID, toPropertyID); err != nil {
			return fmt.Errorf("fold contact %s: %w", stmt.name, err)
		}
	}
	return nil
}

func (s *Store) ListContactPhones(ctx context.Context, contactID uuid.UUID) ([]ContactPhone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, contact_id, phone_number, phone_type, carrier, dnc, prepaid, activity_status, is_primary, created_at
		FROM contact_phones
		WHERE contact_id = $1
		ORDER BY created_at`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phones := make([]ContactPhone, 0, 4)
	for rows.Next() {
		var p ContactPhone
		if err := rows.Scan(&p.ID, &p.ContactID, &p.PhoneNumber, &p.PhoneType, &p.Carrier, &p.DNC, &p.Prepaid, &p.ActivityStatus, &p.IsPrimary, &p.CreatedAt); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

func (s *Store) CreateContactPhone(ctx context.Context, p ContactPhone) (ContactPhone, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO contact_phones (contact_id, phone_number, phone_type, carrier, dnc, prepaid, activity_status, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.ContactID, p.PhoneNumber, p.PhoneType, p.Carrier, p.DNC, p.Prepaid, p.ActivityStatus, p.IsPrimary).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return ContactPhone{}, fmt.Errorf("insert contact phone: %w", err)
	}
	return p, nil
}

// UpdateContactPhoneMetadata refreshes metadata on an existing phone without
// touching the number or the primary flag.
func (s *Store) UpdateContactPhoneMetadata(ctx context.Context, id uuid.UUID, phoneType, carrier *string, dnc, prepaid *bool, activityStatus *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE contact_phones SET
			phone_type = COALESCE($2, phone_type),
			carrier = COALESCE($3, carrier),
			dnc = COALESCE($4, dnc),
			prepaid = COALESCE($5, prepaid),
			activity_status = COALESCE($6, activity_status)
		WHERE id = $1`,
		id, phoneType, carrier, dnc, prepaid, activityStatus)
	return err
}

func (s *Store) ListContactEmails(ctx context.Context, contactID uuid.UUID) ([]ContactEmail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, contact_id, email, email_type, is_primary, created_at
		FROM contact_emails
		WHERE contact_id = $1
		ORDER BY created_at`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]ContactEmail, 0, 4)
	for rows.Next() {
		var e ContactEmail
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Email, &e.EmailType, &e.IsPrimary, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *Store) CreateContactEmail(ctx context.Context, e ContactEmail) (ContactEmail, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO contact_emails (contact_id, email, email_type, is_primary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.ContactID, e.Email, e.EmailType, e.IsPrimary).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return ContactEmail{}, fmt.Errorf("insert contact email: %w", err)
	}
	return e, nil
}

func (s *Store) UpdateContactEmailType(ctx context.Context, id uuid.UUID, emailType *string) error {
	_, err := s.db.Exec(ctx, `UPDATE contact_emails SET email_type = COALESCE($2, email_type) WHERE id = $1`, id, emailType)
	return err
}

func (s *Store) ListContactAddresses(ctx context.Context, contactID uuid.UUID) ([]ContactAddress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, contact_id, address_line1, city, state, zipcode, address_type, is_primary, created_at
		FROM contact_addresses
		WHERE contact_id = $1
		ORDER BY created_at`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	addresses := make([]ContactAddress, 0, 2)
	for rows.Next() {
		var a ContactAddress
		if err := rows.Scan(&a.ID, &a.ContactID, &a.AddressLine1, &a.City, &a.State, &a.Zipcode, &a.AddressType, &a.IsPrimary, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

func (s *Store) CreateContactAddress(ctx context.Context, a ContactAddress) (ContactAddress, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO contact_addresses (contact_id, address_line1, city, state, zipcode, address_type, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		a.ContactID, a.AddressLine1, a.City, a.State, a.Zipcode, a.AddressType, a.IsPrimary).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return ContactAddress{}, fmt.Errorf("insert contact address: %w", err)
	}
	return a, nil
}

func (s *Store) ListContactSocialProfiles(ctx context.Context, contactID uuid.UUID) ([]ContactSocialProfile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, contact_id, platform, profile_url, created_at
		FROM contact_social_profiles
		WHERE contact_id = $1
		ORDER BY created_at`,
		contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]ContactSocialProfile, 0, 2)
	for rows.Next() {
		var sp ContactSocialProfile
		if err := rows.Scan(&sp.ID, &sp.ContactID, &sp.Platform, &sp.ProfileURL, &sp.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, sp)
	}
	return profiles, rows.Err()
}

func (s *Store) CreateContactSocialProfile(ctx context.Context, sp ContactSocialProfile) (ContactSocialProfile, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO contact_social_profiles (contact_id, platform, profile_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		sp.ContactID, sp.Platform, sp.ProfileURL).
		Scan(&sp.ID, &sp.CreatedAt)
	if err != nil {
		return ContactSocialProfile{}, fmt.Errorf("insert social profile: %w", err)
	}
	return sp, nil
}

// ContactExportRow flattens a contact with its property address and primary
// phone/email for CSV export.
type ContactExportRow struct {
	Contact
	PropertyAddress string
	PropertyCity    string
	PrimaryPhone    *string
	PrimaryEmail    *string
}

func (s *Store) ExportContacts(ctx context.Context) ([]ContactExportRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.property_id, c.name, c.first_name, c.last_name, c.relationship, c.age,
			c.gender, c.marital_status, c.net_asset_value, c.flags,
			c.is_decision_maker, c.dnc, c.is_litigator, c.deceased, c.hidden, c.created_at, c.updated_at,
			p.address_line1, p.city,
			(SELECT ph.phone_number FROM contact_phones ph WHERE ph.contact_id = c.id ORDER BY ph.is_primary DESC, ph.created_at LIMIT 1),
			(SELECT em.email FROM contact_emails em WHERE em.contact_id = c.id ORDER BY em.is_primary DESC, em.created_at LIMIT 1)
		FROM contacts c
		JOIN properties p ON p.id = c.property_id
		ORDER BY c.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]ContactExportRow, 0, 256)
	for rows.Next() {
		var r ContactExportRow
		err := rows.Scan(
			&r.ID, &r.PropertyID, &r.Name, &r.FirstName, &r.LastName, &r.Relationship, &r.Age,
			&r.Gender, &r.MaritalStatus, &r.NetAssetValue, &r.Flags,
			&r.IsDecisionMaker, &r.DNC, &r.IsLitigator, &r.Deceased, &r.Hidden, &r.CreatedAt, &r.UpdatedAt,
			&r.PropertyAddress, &r.PropertyCity, &r.PrimaryPhone, &r.PrimaryEmail,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
