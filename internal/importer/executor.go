package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/leadline-crm/apps/api/internal/store"
)

// Importer runs previews and commits against a Store. Commits are expected
// to run on a transaction-scoped store so a storage failure rolls the whole
// batch back; row-level validation problems are recorded and do not abort.
type Importer struct {
	st Store
}

func New(st Store) *Importer {
	return &Importer{st: st}
}

// PropertySelection names the preview rows a user approved for commit.
type PropertySelection struct {
	NewRows    []int `json:"newRows"`
	UpdateRows []int `json:"updateRows"`
}

// ContactSelection names one approved contact-file row. PropertyID overrides
// automatic matching when the user assigned the contact by hand.
type ContactSelection struct {
	RowIndex   int        `json:"rowIndex"`
	PropertyID *uuid.UUID `json:"propertyId,omitempty"`
}

// PropertyPreview is the response body for a property-file preview.
type PropertyPreview struct {
	TotalRows       int                  `json:"totalRows"`
	NewCount        int                  `json:"newCount"`
	DuplicateCount  int                  `json:"duplicateCount"`
	UpdatableCount  int                  `json:"updatableCount"`
	DetectedColumns []string             `json:"detectedColumns"`
	MappedColumns   map[string]string    `json:"mappedColumns"`
	Rows            []PropertyRowPreview `json:"rows"`
}

// ContactPreview is the response body for a contact-file preview.
type ContactPreview struct {
	TotalRows       int                 `json:"totalRows"`
	MatchedCount    int                 `json:"matchedCount"`
	UnmatchedCount  int                 `json:"unmatchedCount"`
	DetectedColumns []string            `json:"detectedColumns"`
	MappedColumns   map[string]string   `json:"mappedColumns"`
	Rows            []ContactRowPreview `json:"rows"`
}

// PreviewProperties classifies every row of a property file without writing
// anything.
func (imp *Importer) PreviewProperties(ctx context.Context, file *ParsedFile) (*PropertyPreview, error) {
	detected, mappedCols := DetectColumns(file.Headers, "property")
	preview := &PropertyPreview{
		TotalRows:       len(file.Rows),
		DetectedColumns: detected,
		MappedColumns:   mappedCols,
	}

	for i, row := range file.Rows {
		rec := BuildPropertyRecord(MapPropertyRow(row))
		rec.Contacts = ExtractEmbeddedContacts(row)

		rp := PropertyRowPreview{
			RowIndex: i,
			Address:  deref(rec.AddressLine1),
		}

		existing, method, err := ResolveProperty(ctx, imp.st, rec)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			rp.Status = StatusNew
			preview.NewCount++
		} else {
			rp.MatchMethod = method
			rp.PropertyID = &existing.ID
			rp.Changes = DiffProperty(rec, *existing)
			nested, err := imp.hasNewNestedContacts(ctx, existing.ID, rec.Contacts)
			if err != nil {
				return nil, err
			}
			preview.DuplicateCount++
			if len(rp.Changes) > 0 || nested {
				rp.Status = StatusUpdate
				preview.UpdatableCount++
			} else {
				rp.Status = StatusUpToDate
			}
		}
		preview.Rows = append(preview.Rows, rp)
	}
	return preview, nil
}

// CommitProperties applies the approved rows. Every selected row is
// re-resolved against current data rather than trusting ids captured at
// preview time, so a commit replayed against an already-imported file
// converges to no-ops instead of duplicating records.
func (imp *Importer) CommitProperties(ctx context.Context, file *ParsedFile, sel PropertySelection) (*CommitStats, error) {
	stats := &CommitStats{Errors: []string{}}

	seen := make(map[int]bool)
	for _, indices := range [][]int{sel.NewRows, sel.UpdateRows} {
		for _, idx := range indices {
			if idx < 0 || idx >= len(file.Rows) || seen[idx] {
				continue
			}
			seen[idx] = true
			if err := imp.upsertPropertyRow(ctx, file.Rows[idx], idx, stats); err != nil {
				return nil, err
			}
		}
	}
	return stats, nil
}

func (imp *Importer) upsertPropertyRow(ctx context.Context, row RawRow, rowIndex int, stats *CommitStats) error {
	rec := BuildPropertyRecord(MapPropertyRow(row))
	rec.Contacts = ExtractEmbeddedContacts(row)

	existing, _, err := ResolveProperty(ctx, imp.st, rec)
	if err != nil {
		return err
	}

	if existing == nil {
		raw, err := json.Marshal(row)
		if err != nil {
			stats.RecordError(rowIndex, EntityProperty, err)
			return nil
		}
		created, err := imp.st.CreateProperty(ctx, newStoreProperty(rec, raw))
		if err != nil {
			return err
		}
		stats.Created++
		stats.recordOutcome(rowIndex, EntityProperty, ResultCreated)
		for _, c := range rec.Contacts {
			if _, err := imp.upsertContact(ctx, created.ID, c, stats); err != nil {
				return err
			}
		}
		return nil
	}

	changes := DiffProperty(rec, *existing)
	touched := len(changes) > 0
	if touched {
		if _, err := imp.st.UpdatePropertyImportFields(ctx, existing.ID, importFields(rec)); err != nil {
			return err
		}
	}

	for _, c := range rec.Contacts {
		changed, err := imp.upsertContact(ctx, existing.ID, c, stats)
		if err != nil {
			return err
		}
		if changed {
			touched = true
		}
	}

	if touched {
		stats.Updated++
		stats.recordOutcome(rowIndex, EntityProperty, ResultUpdated)
	} else {
		stats.SkippedUpToDate++
		stats.recordOutcome(rowIndex, EntityProperty, ResultUpToDate)
	}
	return nil
}

// PreviewContacts classifies a skip-trace contact file: property match first,
// then contact-level status against the matched property's data.
func (imp *Importer) PreviewContacts(ctx context.Context, file *ParsedFile) (*ContactPreview, error) {
	detected, mappedCols := DetectColumns(file.Headers, "contact")
	preview := &ContactPreview{
		TotalRows:       len(file.Rows),
		DetectedColumns: detected,
		MappedColumns:   mappedCols,
	}

	for i, row := range file.Rows {
		mapped := MapContactRow(row)
		rec := ParseContactRow(row, mapped)

		rp := ContactRowPreview{
			RowIndex:    i,
			ContactName: rec.Name,
		}

		property, method, err := ResolvePropertyForContact(ctx, imp.st, mapped)
		if err != nil {
			return nil, err
		}
		if property == nil {
			rp.Status = StatusNew
			preview.UnmatchedCount++
			preview.Rows = append(preview.Rows, rp)
			continue
		}
		preview.MatchedCount++
		rp.PropertyID = &property.ID
		rp.PropertyMatch = method

		if rec.Name == "" {
			rp.Status = StatusNew
			rp.Error = "missing contact name"
			preview.Rows = append(preview.Rows, rp)
			continue
		}

		existing, err := imp.st.FindContactByName(ctx, property.ID, rec.Name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			rp.Status = StatusNew
			for _, p := range rec.Phones {
				rp.NewPhones = append(rp.NewPhones, p.Number)
			}
			for _, e := range rec.Emails {
				rp.NewEmails = append(rp.NewEmails, e.Email)
			}
		} else {
			rp.Changes = DiffContact(rec, *existing)
			rp.NewPhones, rp.NewEmails, err = imp.newChannels(ctx, existing.ID, rec)
			if err != nil {
				return nil, err
			}
			if len(rp.Changes) > 0 || len(rp.NewPhones) > 0 || len(rp.NewEmails) > 0 {
				rp.Status = StatusUpdate
			} else {
				rp.Status = StatusUpToDate
			}
		}
		preview.Rows = append(preview.Rows, rp)
	}
	return preview, nil
}

// CommitContacts applies approved contact-file rows. Rows without an explicit
// property assignment are re-resolved; a row that still matches nothing is a
// row error, not a batch failure.
func (imp *Importer) CommitContacts(ctx context.Context, file *ParsedFile, selections []ContactSelection) (*CommitStats, error) {
	stats := &CommitStats{Errors: []string{}}

	for _, sel := range selections {
		if sel.RowIndex < 0 || sel.RowIndex >= len(file.Rows) {
			continue
		}
		row := file.Rows[sel.RowIndex]
		mapped := MapContactRow(row)
		rec := ParseContactRow(row, mapped)

		if rec.Name == "" {
			stats.RecordError(sel.RowIndex, EntityContact, fmt.Errorf("missing contact name"))
			continue
		}

		var propertyID uuid.UUID
		if sel.PropertyID != nil {
			propertyID = *sel.PropertyID
		} else {
			property, _, err := ResolvePropertyForContact(ctx, imp.st, mapped)
			if err != nil {
				return nil, err
			}
			if property == nil {
				stats.RecordError(sel.RowIndex, EntityContact, fmt.Errorf("no matching property for contact %q", rec.Name))
				continue
			}
			propertyID = property.ID
		}

		createdBefore := stats.ContactsCreated
		changed, err := imp.upsertContact(ctx, propertyID, rec, stats)
		if err != nil {
			return nil, err
		}
		switch {
		case stats.ContactsCreated > createdBefore:
			stats.recordOutcome(sel.RowIndex, EntityContact, ResultCreated)
		case changed:
			stats.recordOutcome(sel.RowIndex, EntityContact, ResultUpdated)
		default:
			stats.SkippedUpToDate++
			stats.recordOutcome(sel.RowIndex, EntityContact, ResultUpToDate)
		}
	}
	return stats, nil
}

// upsertContact creates or refreshes one contact and its nested channels.
// Channels are deduplicated by normalized value; on a hit, non-nil incoming
// metadata refreshes the stored row in place. Reports whether anything was
// written.
func (imp *Importer) upsertContact(ctx context.Context, propertyID uuid.UUID, rec ContactRecord, stats *CommitStats) (bool, error) {
	if rec.Name == "" {
		return false, nil
	}

	existing, err := imp.st.FindContactByName(ctx, propertyID, rec.Name)
	if err != nil {
		return false, err
	}

	changed := false
	var contactID uuid.UUID
	if existing == nil {
		relationship := rec.Relationship
		if relationship == nil {
			owner := "Owner"
			relationship = &owner
		}
		created, err := imp.st.CreateContact(ctx, store.Contact{
			PropertyID:    propertyID,
			Name:          rec.Name,
			FirstName:     rec.FirstName,
			LastName:      rec.LastName,
			Relationship:  relationship,
			Age:           rec.Age,
			Gender:        rec.Gender,
			MaritalStatus: rec.MaritalStatus,
			NetAssetValue: rec.NetAssetValue,
			Flags:         rec.Flags,
		})
		if err != nil {
			return false, err
		}
		contactID = created.ID
		stats.ContactsCreated++
		changed = true
	} else {
		contactID = existing.ID
		if len(DiffContact(rec, *existing)) > 0 {
			_, err := imp.st.UpdateContactImportFields(ctx, existing.ID, store.ContactImportFields{
				FirstName:     rec.FirstName,
				LastName:      rec.LastName,
				Relationship:  rec.Relationship,
				Age:           rec.Age,
				Gender:        rec.Gender,
				MaritalStatus: rec.MaritalStatus,
				NetAssetValue: rec.NetAssetValue,
				Flags:         rec.Flags,
			})
			if err != nil {
				return false, err
			}
			stats.ContactsUpdated++
			changed = true
		}
	}

	added, err := imp.syncChannels(ctx, contactID, rec, stats)
	if err != nil {
		return false, err
	}
	return changed || added, nil
}

// syncChannels adds missing phones, emails, addresses, and social profiles,
// refreshing metadata on phones and email types that already exist. Reports
// whether anything was written.
func (imp *Importer) syncChannels(ctx context.Context, contactID uuid.UUID, rec ContactRecord, stats *CommitStats) (bool, error) {
	added := false

	phones, err := imp.st.ListContactPhones(ctx, contactID)
	if err != nil {
		return false, err
	}
	byNumber := make(map[string]store.ContactPhone, len(phones))
	for _, p := range phones {
		byNumber[p.PhoneNumber] = p
	}
	hasPrimaryPhone := false
	for _, p := range phones {
		if p.IsPrimary {
			hasPrimaryPhone = true
		}
	}
	for _, p := range rec.Phones {
		current, ok := byNumber[p.Number]
		if !ok {
			created, err := imp.st.CreateContactPhone(ctx, store.ContactPhone{
				ContactID:      contactID,
				PhoneNumber:    p.Number,
				PhoneType:      p.PhoneType,
				Carrier:        p.Carrier,
				DNC:            p.DNC,
				Prepaid:        p.Prepaid,
				ActivityStatus: p.ActivityStatus,
				IsPrimary:      p.IsPrimary && !hasPrimaryPhone,
			})
			if err != nil {
				return false, err
			}
			byNumber[p.Number] = created
			if created.IsPrimary {
				hasPrimaryPhone = true
			}
			stats.PhonesAdded++
			added = true
			continue
		}
		if phoneMetadataDiffers(current, p) {
			if err := imp.st.UpdateContactPhoneMetadata(ctx, current.ID, p.PhoneType, p.Carrier, p.DNC, p.Prepaid, p.ActivityStatus); err != nil {
				return false, err
			}
			added = true
		}
	}

	emails, err := imp.st.ListContactEmails(ctx, contactID)
	if err != nil {
		return false, err
	}
	byEmail := make(map[string]store.ContactEmail, len(emails))
	hasPrimaryEmail := false
	for _, e := range emails {
		byEmail[NormalizeEmail(e.Email)] = e
		if e.IsPrimary {
			hasPrimaryEmail = true
		}
	}
	for _, e := range rec.Emails {
		if current, ok := byEmail[e.Email]; ok {
			if e.EmailType != nil && (current.EmailType == nil || *current.EmailType != *e.EmailType) {
				if err := imp.st.UpdateContactEmailType(ctx, current.ID, e.EmailType); err != nil {
					return false, err
				}
				added = true
			}
			continue
		}
		created, err := imp.st.CreateContactEmail(ctx, store.ContactEmail{
			ContactID: contactID,
			Email:     e.Email,
			EmailType: e.EmailType,
			IsPrimary: e.IsPrimary && !hasPrimaryEmail,
		})
		if err != nil {
			return false, err
		}
		byEmail[e.Email] = created
		if created.IsPrimary {
			hasPrimaryEmail = true
		}
		stats.EmailsAdded++
		added = true
	}

	if len(rec.Addresses) > 0 {
		addresses, err := imp.st.ListContactAddresses(ctx, contactID)
		if err != nil {
			return false, err
		}
		haveAddr := make(map[string]bool, len(addresses))
		hasPrimaryAddr := false
		for _, a := range addresses {
			haveAddr[AddressKey(a.AddressLine1)] = true
			if a.IsPrimary {
				hasPrimaryAddr = true
			}
		}
		for _, a := range rec.Addresses {
			key := AddressKey(a.AddressLine1)
			if haveAddr[key] {
				continue
			}
			mailing := "Mailing"
			created, err := imp.st.CreateContactAddress(ctx, store.ContactAddress{
				ContactID:    contactID,
				AddressLine1: a.AddressLine1,
				City:         a.City,
				State:        a.State,
				Zipcode:      a.Zip,
				AddressType:  &mailing,
				IsPrimary:    !hasPrimaryAddr,
			})
			if err != nil {
				return false, err
			}
			haveAddr[key] = true
			if created.IsPrimary {
				hasPrimaryAddr = true
			}
			stats.AddressesAdded++
			added = true
		}
	}

	if len(rec.SocialProfiles) > 0 {
		profiles, err := imp.st.ListContactSocialProfiles(ctx, contactID)
		if err != nil {
			return false, err
		}
		haveProfile := make(map[string]bool, len(profiles))
		for _, sp := range profiles {
			haveProfile[sp.ProfileURL] = true
		}
		for _, sp := range rec.SocialProfiles {
			if haveProfile[sp.ProfileURL] {
				continue
			}
			if _, err := imp.st.CreateContactSocialProfile(ctx, store.ContactSocialProfile{
				ContactID:  contactID,
				Platform:   sp.Platform,
				ProfileURL: sp.ProfileURL,
			}); err != nil {
				return false, err
			}
			haveProfile[sp.ProfileURL] = true
			added = true
		}
	}

	return added, nil
}

// newChannels reports which incoming phone numbers and emails are not yet
// stored for a contact, for the preview response.
func (imp *Importer) newChannels(ctx context.Context, contactID uuid.UUID, rec ContactRecord) (newPhones, newEmails []string, err error) {
	phones, err := imp.st.ListContactPhones(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	havePhone := make(map[string]bool, len(phones))
	for _, p := range phones {
		havePhone[p.PhoneNumber] = true
	}
	for _, p := range rec.Phones {
		if !havePhone[p.Number] {
			newPhones = append(newPhones, p.Number)
		}
	}

	emails, err := imp.st.ListContactEmails(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	haveEmail := make(map[string]bool, len(emails))
	for _, e := range emails {
		haveEmail[NormalizeEmail(e.Email)] = true
	}
	for _, e := range rec.Emails {
		if !haveEmail[e.Email] {
			newEmails = append(newEmails, e.Email)
		}
	}
	return newPhones, newEmails, nil
}

// hasNewNestedContacts reports whether any embedded contact would create a
// contact, phone, or email on commit.
func (imp *Importer) hasNewNestedContacts(ctx context.Context, propertyID uuid.UUID, contacts []ContactRecord) (bool, error) {
	for _, c := range contacts {
		if c.Name == "" {
			continue
		}
		existing, err := imp.st.FindContactByName(ctx, propertyID, c.Name)
		if err != nil {
			return false, err
		}
		if existing == nil {
			return true, nil
		}
		newPhones, newEmails, err := imp.newChannels(ctx, existing.ID, c)
		if err != nil {
			return false, err
		}
		if len(newPhones) > 0 || len(newEmails) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func phoneMetadataDiffers(current store.ContactPhone, incoming PhoneRecord) bool {
	if incoming.PhoneType != nil && (current.PhoneType == nil || *current.PhoneType != *incoming.PhoneType) {
		return true
	}
	if incoming.Carrier != nil && (current.Carrier == nil || *current.Carrier != *incoming.Carrier) {
		return true
	}
	if incoming.ActivityStatus != nil && (current.ActivityStatus == nil || *current.ActivityStatus != *incoming.ActivityStatus) {
		return true
	}
	if incoming.DNC != nil && (current.DNC == nil || *current.DNC != *incoming.DNC) {
		return true
	}
	if incoming.Prepaid != nil && (current.Prepaid == nil || *current.Prepaid != *incoming.Prepaid) {
		return true
	}
	return false
}

// newStoreProperty fills required columns with the import placeholders the
// UI expects when a file omits them.
func newStoreProperty(rec PropertyRecord, raw []byte) store.Property {
	return store.Property{
		ExternalPropertyID:  rec.ExternalPropertyID,
		ExternalLeadID:      rec.ExternalLeadID,
		APNParcelID:         rec.APNParcelID,
		AddressLine1:        derefOr(rec.AddressLine1, "TBD"),
		AddressLine2:        rec.AddressLine2,
		City:                derefOr(rec.City, "TBD"),
		State:               derefOr(rec.State, "FL"),
		Zipcode:             derefOr(rec.Zipcode, "00000"),
		County:              rec.County,
		SubdivisionName:     rec.SubdivisionName,
		Owner1Name:          rec.Owner1Name,
		Owner2Name:          rec.Owner2Name,
		OwnerLocation:       rec.OwnerLocation,
		EstimatedValue:      rec.EstimatedValue,
		EquityAmount:        rec.EquityAmount,
		EquityPercent:       rec.EquityPercent,
		MortgageAmount:      rec.MortgageAmount,
		TotalLoanBalance:    rec.TotalLoanBalance,
		SalePrice:           rec.SalePrice,
		SaleDate:            rec.SaleDate,
		TaxAmount:           rec.TaxAmount,
		TaxYear:             rec.TaxYear,
		TaxDelinquent:       rec.TaxDelinquent,
		TaxDelinquentYear:   rec.TaxDelinquentYear,
		EstimatedRepairCost: rec.EstimatedRepairCost,
		PropertyType:        rec.PropertyType,
		ConstructionType:    rec.ConstructionType,
		YearBuilt:           rec.YearBuilt,
		TotalBedrooms:       rec.TotalBedrooms,
		TotalBaths:          rec.TotalBaths,
		BuildingSquareFeet:  rec.BuildingSquareFeet,
		MarketStatus:        rec.MarketStatus,
		Status:              rec.Status,
		ListName:            rec.ListName,
		Source:              "Import",
		RawImport:           raw,
	}
}

// importFields carries the refreshable subset of a property record into an
// update. Identifier and address columns are deliberately absent.
func importFields(rec PropertyRecord) store.PropertyImportFields {
	return store.PropertyImportFields{
		Owner1Name:          rec.Owner1Name,
		Owner2Name:          rec.Owner2Name,
		OwnerLocation:       rec.OwnerLocation,
		EstimatedValue:      rec.EstimatedValue,
		EquityAmount:        rec.EquityAmount,
		EquityPercent:       rec.EquityPercent,
		MortgageAmount:      rec.MortgageAmount,
		TotalLoanBalance:    rec.TotalLoanBalance,
		SalePrice:           rec.SalePrice,
		SaleDate:            rec.SaleDate,
		TaxAmount:           rec.TaxAmount,
		TaxYear:             rec.TaxYear,
		TaxDelinquent:       rec.TaxDelinquent,
		TaxDelinquentYear:   rec.TaxDelinquentYear,
		EstimatedRepairCost: rec.EstimatedRepairCost,
		PropertyType:        rec.PropertyType,
		ConstructionType:    rec.ConstructionType,
		YearBuilt:           rec.YearBuilt,
		TotalBedrooms:       rec.TotalBedrooms,
		TotalBaths:          rec.TotalBaths,
		BuildingSquareFeet:  rec.BuildingSquareFeet,
		MarketStatus:        rec.MarketStatus,
	}
}

func derefOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
