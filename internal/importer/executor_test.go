package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/leadline-crm/apps/api/internal/store"
)

// fakeStore backs executor tests with in-memory slices. Find methods mirror
// the SQL store's lookup semantics, including the normalized address compare.
type fakeStore struct {
	properties []store.Property
	contacts   []store.Contact
	phones     []store.ContactPhone
	emails     []store.ContactEmail
	addresses  []store.ContactAddress
	profiles   []store.ContactSocialProfile
}

func (f *fakeStore) FindPropertyByExternalID(_ context.Context, externalID string) (*store.Property, error) {
	for i := range f.properties {
		if p := f.properties[i]; p.ExternalPropertyID != nil && *p.ExternalPropertyID == externalID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindPropertyByParcel(_ context.Context, apn string) (*store.Property, error) {
	for i := range f.properties {
		if p := f.properties[i]; p.APNParcelID != nil && *p.APNParcelID == apn {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindPropertyByLeadID(_ context.Context, leadID string) (*store.Property, error) {
	for i := range f.properties {
		if p := f.properties[i]; p.ExternalLeadID != nil && *p.ExternalLeadID == leadID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindPropertyByAddress(_ context.Context, addressKey, cityKey string) (*store.Property, error) {
	for i := range f.properties {
		p := f.properties[i]
		if AddressKey(p.AddressLine1) == addressKey && AddressKey(p.City) == cityKey {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateProperty(_ context.Context, p store.Property) (store.Property, error) {
	p.ID = uuid.New()
	f.properties = append(f.properties, p)
	return p, nil
}

func (f *fakeStore) UpdatePropertyImportFields(_ context.Context, id uuid.UUID, fields store.PropertyImportFields) (store.Property, error) {
	for i := range f.properties {
		if f.properties[i].ID != id {
			continue
		}
		p := &f.properties[i]
		if fields.Owner1Name != nil {
			p.Owner1Name = fields.Owner1Name
		}
		if fields.Owner2Name != nil {
			p.Owner2Name = fields.Owner2Name
		}
		if fields.OwnerLocation != nil {
			p.OwnerLocation = fields.OwnerLocation
		}
		if fields.EstimatedValue != nil {
			p.EstimatedValue = fields.EstimatedValue
		}
		if fields.EquityAmount != nil {
			p.EquityAmount = fields.EquityAmount
		}
		if fields.EquityPercent != nil {
			p.EquityPercent = fields.EquityPercent
		}
		if fields.MortgageAmount != nil {
			p.MortgageAmount = fields.MortgageAmount
		}
		if fields.TotalLoanBalance != nil {
			p.TotalLoanBalance = fields.TotalLoanBalance
		}
		if fields.SalePrice != nil {
			p.SalePrice = fields.SalePrice
		}
		if fields.SaleDate != nil {
			p.SaleDate = fields.SaleDate
		}
		if fields.TaxAmount != nil {
			p.TaxAmount = fields.TaxAmount
		}
		if fields.TaxYear != nil {
			p.TaxYear = fields.TaxYear
		}
		if fields.TaxDelinquent != nil {
			p.TaxDelinquent = fields.TaxDelinquent
		}
		if fields.TaxDelinquentYear != nil {
			p.TaxDelinquentYear = fields.TaxDelinquentYear
		}
		if fields.EstimatedRepairCost != nil {
			p.EstimatedRepairCost = fields.EstimatedRepairCost
		}
		if fields.PropertyType != nil {
			p.PropertyType = fields.PropertyType
		}
		if fields.ConstructionType != nil {
			p.ConstructionType = fields.ConstructionType
		}
		if fields.YearBuilt != nil {
			p.YearBuilt = fields.YearBuilt
		}
		if fields.TotalBedrooms != nil {
			p.TotalBedrooms = fields.TotalBedrooms
		}
		if fields.TotalBaths != nil {
			p.TotalBaths = fields.TotalBaths
		}
		if fields.BuildingSquareFeet != nil {
			p.BuildingSquareFeet = fields.BuildingSquareFeet
		}
		if fields.MarketStatus != nil {
			p.MarketStatus = fields.MarketStatus
		}
		return *p, nil
	}
	return store.Property{}, nil
}

func (f *fakeStore) FindContactByName(_ context.Context, propertyID uuid.UUID, name string) (*store.Contact, error) {
	for i := range f.contacts {
		c := f.contacts[i]
		if c.PropertyID == propertyID && strings.EqualFold(c.Name, name) {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateContact(_ context.Context, c store.Contact) (store.Contact, error) {
	c.ID = uuid.New()
	f.contacts = append(f.contacts, c)
	return c, nil
}

func (f *fakeStore) UpdateContactImportFields(_ context.Context, id uuid.UUID, fields store.ContactImportFields) (store.Contact, error) {
	for i := range f.contacts {
		if f.contacts[i].ID != id {
			continue
		}
		c := &f.contacts[i]
		if fields.FirstName != nil {
			c.FirstName = fields.FirstName
		}
		if fields.LastName != nil {
			c.LastName = fields.LastName
		}
		if fields.Relationship != nil {
			c.Relationship = fields.Relationship
		}
		if fields.Age != nil {
			c.Age = fields.Age
		}
		if fields.Gender != nil {
			c.Gender = fields.Gender
		}
		if fields.MaritalStatus != nil {
			c.MaritalStatus = fields.MaritalStatus
		}
		if fields.NetAssetValue != nil {
			c.NetAssetValue = fields.NetAssetValue
		}
		if fields.Flags != nil {
			c.Flags = fields.Flags
		}
		return *c, nil
	}
	return store.Contact{}, nil
}

func (f *fakeStore) ListContactPhones(_ context.Context, contactID uuid.UUID) ([]store.ContactPhone, error) {
	var out []store.ContactPhone
	for _, p := range f.phones {
		if p.ContactID == contactID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactPhone(_ context.Context, p store.ContactPhone) (store.ContactPhone, error) {
	p.ID = uuid.New()
	f.phones = append(f.phones, p)
	return p, nil
}

func (f *fakeStore) UpdateContactPhoneMetadata(_ context.Context, id uuid.UUID, phoneType, carrier *string, dnc, prepaid *bool, activityStatus *string) error {
	for i := range f.phones {
		if f.phones[i].ID != id {
			continue
		}
		p := &f.phones[i]
		if phoneType != nil {
			p.PhoneType = phoneType
		}
		if carrier != nil {
			p.Carrier = carrier
		}
		if dnc != nil {
			p.DNC = dnc
		}
		if prepaid != nil {
			p.Prepaid = prepaid
		}
		if activityStatus != nil {
			p.ActivityStatus = activityStatus
		}
	}
	return nil
}

func (f *fakeStore) ListContactEmails(_ context.Context, contactID uuid.UUID) ([]store.ContactEmail, error) {
	var out []store.ContactEmail
	for _, e := range f.emails {
		if e.ContactID == contactID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactEmail(_ context.Context, e store.ContactEmail) (store.ContactEmail, error) {
	e.ID = uuid.New()
	f.emails = append(f.emails, e)
	return e, nil
}

func (f *fakeStore) UpdateContactEmailType(_ context.Context, id uuid.UUID, emailType *string) error {
	for i := range f.emails {
		if f.emails[i].ID == id {
			f.emails[i].EmailType = emailType
		}
	}
	return nil
}

func (f *fakeStore) ListContactAddresses(_ context.Context, contactID uuid.UUID) ([]store.ContactAddress, error) {
	var out []store.ContactAddress
	for _, a := range f.addresses {
		if a.ContactID == contactID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactAddress(_ context.Context, a store.ContactAddress) (store.ContactAddress, error) {
	a.ID = uuid.New()
	f.addresses = append(f.addresses, a)
	return a, nil
}

func (f *fakeStore) ListContactSocialProfiles(_ context.Context, contactID uuid.UUID) ([]store.ContactSocialProfile, error) {
	var out []store.ContactSocialProfile
	for _, sp := range f.profiles {
		if sp.ContactID == contactID {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactSocialProfile(_ context.Context, sp store.ContactSocialProfile) (store.ContactSocialProfile, error) {
	sp.ID = uuid.New()
	f.profiles = append(f.profiles, sp)
	return sp, nil
}

func mkFile(headers []string, rows ...[]string) *ParsedFile {
	parsed := &ParsedFile{Headers: headers}
	for _, r := range rows {
		parsed.Rows = append(parsed.Rows, NewRawRow(headers, r))
	}
	return parsed
}

func strPtr(s string) *string { return &s }

func TestResolvePropertyPriority(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	byID, _ := fs.CreateProperty(ctx, store.Property{
		ExternalPropertyID: strPtr("ext-1"),
		AddressLine1:       "1 Elsewhere Rd",
		City:               "Miami",
	})
	byAddr, _ := fs.CreateProperty(ctx, store.Property{
		APNParcelID:  strPtr("apn-9"),
		AddressLine1: "123 main st",
		City:         "orlando",
	})

	t.Run("external id beats address", func(t *testing.T) {
		// The row's address points at byAddr, but the external id wins.
		rec := PropertyRecord{
			ExternalPropertyID: strPtr("ext-1"),
			AddressLine1:       strPtr("123 Main St"),
			City:               strPtr("Orlando"),
		}
		got, method, err := ResolveProperty(ctx, fs, rec)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != byID.ID {
			t.Fatalf("resolved %v, want property matched by external id", got)
		}
		if method != MatchExternalID {
			t.Errorf("method = %q", method)
		}
	})

	t.Run("apn beats address", func(t *testing.T) {
		rec := PropertyRecord{
			APNParcelID:  strPtr("apn-9"),
			AddressLine1: strPtr("1 Elsewhere Rd"),
			City:         strPtr("Miami"),
		}
		got, method, err := ResolveProperty(ctx, fs, rec)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != byAddr.ID {
			t.Fatalf("resolved %v, want property matched by apn", got)
		}
		if method != MatchAPN {
			t.Errorf("method = %q", method)
		}
	})

	t.Run("address fallback", func(t *testing.T) {
		rec := PropertyRecord{
			AddressLine1: strPtr("123 Main St."),
			City:         strPtr("ORLANDO"),
		}
		got, method, err := ResolveProperty(ctx, fs, rec)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != byAddr.ID {
			t.Fatalf("resolved %v, want address match", got)
		}
		if method != MatchAddress {
			t.Errorf("method = %q", method)
		}
	})

	t.Run("no match", func(t *testing.T) {
		rec := PropertyRecord{AddressLine1: strPtr("999 Nowhere Ln"), City: strPtr("Nope")}
		got, method, err := ResolveProperty(ctx, fs, rec)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil || method != MatchNone {
			t.Errorf("got %v method %q, want no match", got, method)
		}
	})
}

func TestPreviewProperties(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	fs.CreateProperty(ctx, store.Property{
		AddressLine1:   "123 main st",
		City:           "orlando",
		Owner1Name:     strPtr("Jane Doe"),
		EstimatedValue: f(250000),
	})

	file := mkFile(
		[]string{"address", "city", "owner_1_name", "estimated_value"},
		[]string{"123 Main St", "Orlando", "Jane Doe", "$300,000"}, // changed value
		[]string{"123 Main St", "Orlando", "Jane Doe", "250000"},   // identical
		[]string{"77 New Pl", "Tampa", "Bob Roe", "100000"},        // unseen
	)

	preview, err := New(fs).PreviewProperties(ctx, file)
	if err != nil {
		t.Fatal(err)
	}

	if preview.TotalRows != 3 || preview.NewCount != 1 || preview.DuplicateCount != 2 || preview.UpdatableCount != 1 {
		t.Fatalf("counts = %+v", preview)
	}

	if preview.Rows[0].Status != StatusUpdate {
		t.Errorf("row 0 status = %q", preview.Rows[0].Status)
	}
	if len(preview.Rows[0].Changes) != 1 || preview.Rows[0].Changes[0].Label != "Estimated Value" {
		t.Errorf("row 0 changes = %+v", preview.Rows[0].Changes)
	}
	if preview.Rows[0].Changes[0].OldValue != "250000" || preview.Rows[0].Changes[0].NewValue != "300000" {
		t.Errorf("row 0 change values = %+v", preview.Rows[0].Changes[0])
	}
	if preview.Rows[1].Status != StatusUpToDate {
		t.Errorf("row 1 status = %q", preview.Rows[1].Status)
	}
	if preview.Rows[2].Status != StatusNew {
		t.Errorf("row 2 status = %q", preview.Rows[2].Status)
	}
}

func TestCommitPropertiesIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	imp := New(fs)

	file := mkFile(
		[]string{"property_id", "address", "city", "owner_1_name", "estimated_value", "contact_1_name", "contact_1_phone1"},
		[]string{"dm-1", "123 Main St", "Orlando", "Jane Doe", "250000", "Jane Doe", "407-555-1001"},
	)
	sel := PropertySelection{NewRows: []int{0}}

	first, err := imp.CommitProperties(ctx, file, sel)
	if err != nil {
		t.Fatal(err)
	}
	if first.Created != 1 || first.ContactsCreated != 1 || first.PhonesAdded != 1 {
		t.Fatalf("first commit stats = %+v", first)
	}

	// Replaying the same selection must converge to a no-op.
	second, err := imp.CommitProperties(ctx, file, PropertySelection{UpdateRows: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || second.Updated != 0 || second.SkippedUpToDate != 1 {
		t.Fatalf("second commit stats = %+v", second)
	}
	if second.ContactsCreated != 0 || second.PhonesAdded != 0 {
		t.Fatalf("second commit added channels: %+v", second)
	}
	if len(fs.properties) != 1 || len(fs.contacts) != 1 || len(fs.phones) != 1 {
		t.Fatalf("store grew on replay: %d properties, %d contacts, %d phones",
			len(fs.properties), len(fs.contacts), len(fs.phones))
	}
}

func TestCommitPropertiesBlankNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	seeded, _ := fs.CreateProperty(ctx, store.Property{
		ExternalPropertyID: strPtr("dm-1"),
		AddressLine1:       "123 main st",
		City:               "orlando",
		Owner1Name:         strPtr("Jane Doe"),
		EstimatedValue:     f(250000),
	})

	file := mkFile(
		[]string{"property_id", "owner_1_name", "estimated_value"},
		[]string{"dm-1", "", "300000"},
	)
	stats, err := New(fs).CommitProperties(ctx, file, PropertySelection{UpdateRows: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	got := fs.properties[0]
	if got.ID != seeded.ID {
		t.Fatalf("unexpected property created")
	}
	if got.Owner1Name == nil || *got.Owner1Name != "Jane Doe" {
		t.Errorf("blank owner cell overwrote stored owner: %v", got.Owner1Name)
	}
	if got.EstimatedValue == nil || *got.EstimatedValue != 300000 {
		t.Errorf("estimated value not refreshed: %v", got.EstimatedValue)
	}
}

func TestCommitContactsRowErrorIsolation(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	property, _ := fs.CreateProperty(ctx, store.Property{AddressLine1: "123 main st", City: "orlando"})

	file := mkFile(
		[]string{"name", "phone_1"},
		[]string{"Jane Doe", "407-555-1001"},
		[]string{"", "407-555-2002"}, // no name, no first/last
	)
	selections := []ContactSelection{
		{RowIndex: 0, PropertyID: &property.ID},
		{RowIndex: 1, PropertyID: &property.ID},
	}

	stats, err := New(fs).CommitContacts(ctx, file, selections)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ContactsCreated != 1 || stats.PhonesAdded != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TotalErrors != 1 || len(stats.Errors) != 1 {
		t.Fatalf("errors = %+v", stats.Errors)
	}
	if !strings.HasPrefix(stats.Errors[0], "Row 3:") {
		t.Errorf("error should carry the spreadsheet line number: %q", stats.Errors[0])
	}
}

func TestSyncChannelsSinglePrimaryAddress(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	contact, _ := fs.CreateContact(ctx, store.Contact{Name: "Jane Doe"})

	rec := ContactRecord{
		Name: "Jane Doe",
		Addresses: []AddressRecord{
			{AddressLine1: "1 Elm St"},
			{AddressLine1: "2 Oak Ave"},
		},
	}
	var stats CommitStats
	added, err := New(fs).syncChannels(ctx, contact.ID, rec, &stats)
	if err != nil {
		t.Fatal(err)
	}
	if !added || stats.AddressesAdded != 2 {
		t.Fatalf("added=%v stats=%+v", added, stats)
	}

	primaries := 0
	for _, a := range fs.addresses {
		if a.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary address, got %d", primaries)
	}
	if !fs.addresses[0].IsPrimary {
		t.Errorf("first new address should hold the primary slot: %+v", fs.addresses)
	}
}

func TestCommitContactsUnmatchedProperty(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}

	file := mkFile(
		[]string{"name", "address", "city", "phone_1"},
		[]string{"Jane Doe", "999 Nowhere Ln", "Nope", "407-555-1001"},
	)
	stats, err := New(fs).CommitContacts(ctx, file, []ContactSelection{{RowIndex: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if stats.ContactsCreated != 0 || stats.TotalErrors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCommitContactsAddsOnlyNewChannels(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	property, _ := fs.CreateProperty(ctx, store.Property{AddressLine1: "123 main st", City: "orlando"})
	contact, _ := fs.CreateContact(ctx, store.Contact{PropertyID: property.ID, Name: "John Smith"})
	fs.CreateContactPhone(ctx, store.ContactPhone{ContactID: contact.ID, PhoneNumber: "5550001111", IsPrimary: true})
	fs.CreateContactEmail(ctx, store.ContactEmail{ContactID: contact.ID, Email: "john@first.com", IsPrimary: true})

	file := mkFile(
		[]string{"name", "phone_1", "phone_1_type", "phone_2", "phone_2_type", "email_address_1", "email_address_2"},
		[]string{"john smith", "555-000-1111", "Wireless", "555-000-2222", "Landline", "John@First.com", "john@second.com"},
	)
	stats, err := New(fs).CommitContacts(ctx, file, []ContactSelection{{RowIndex: 0, PropertyID: &property.ID}})
	if err != nil {
		t.Fatal(err)
	}

	if stats.ContactsCreated != 0 {
		t.Errorf("matched by case-insensitive name, nothing should be created: %+v", stats)
	}
	if stats.PhonesAdded != 1 || stats.EmailsAdded != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(fs.phones) != 2 || len(fs.emails) != 2 {
		t.Fatalf("store has %d phones %d emails", len(fs.phones), len(fs.emails))
	}

	// The existing phone had no type; the incoming metadata refreshes it.
	if fs.phones[0].PhoneType == nil || *fs.phones[0].PhoneType != "Wireless" {
		t.Errorf("existing phone metadata not refreshed: %+v", fs.phones[0])
	}
	// The second phone is new but must not steal the primary slot.
	if fs.phones[1].IsPrimary {
		t.Errorf("new phone should not be primary when one exists")
	}
}

func TestPreviewContacts(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	property, _ := fs.CreateProperty(ctx, store.Property{
		ExternalLeadID: strPtr("77"),
		AddressLine1:   "123 main st",
		City:           "orlando",
	})
	contact, _ := fs.CreateContact(ctx, store.Contact{PropertyID: property.ID, Name: "Jane Doe"})
	fs.CreateContactPhone(ctx, store.ContactPhone{ContactID: contact.ID, PhoneNumber: "4075551001", IsPrimary: true})

	file := mkFile(
		[]string{"name", "lead_id", "address", "city", "phone_1"},
		[]string{"Jane Doe", "77", "", "", "407-555-1001"},             // matched by lead id, up to date
		[]string{"Jane Doe", "", "123 Main St, Orlando, FL", "Orlando", "321-555-9999"}, // new phone
		[]string{"Bob Roe", "", "999 Nowhere Ln", "Nope", "555-1234"},  // unmatched property
	)

	preview, err := New(fs).PreviewContacts(ctx, file)
	if err != nil {
		t.Fatal(err)
	}
	if preview.MatchedCount != 2 || preview.UnmatchedCount != 1 {
		t.Fatalf("counts = %+v", preview)
	}

	if preview.Rows[0].Status != StatusUpToDate {
		t.Errorf("row 0 status = %q", preview.Rows[0].Status)
	}
	if preview.Rows[0].PropertyMatch != MatchLeadID {
		t.Errorf("row 0 match = %q", preview.Rows[0].PropertyMatch)
	}

	if preview.Rows[1].Status != StatusUpdate {
		t.Errorf("row 1 status = %q", preview.Rows[1].Status)
	}
	if preview.Rows[1].PropertyMatch != MatchAddress {
		t.Errorf("row 1 match = %q (street token should strip the city tail)", preview.Rows[1].PropertyMatch)
	}
	if len(preview.Rows[1].NewPhones) != 1 || preview.Rows[1].NewPhones[0] != "3215559999" {
		t.Errorf("row 1 new phones = %v", preview.Rows[1].NewPhones)
	}

	if preview.Rows[2].PropertyID != nil {
		t.Errorf("row 2 should be unmatched")
	}
}
