package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/leadline-crm/apps/api/internal/store"
)

// Store is the persistence surface the import pipeline needs. Find methods
// return (nil, nil) on no match. *store.Store satisfies it; tests substitute
// an in-memory fake.
type Store interface {
	FindPropertyByExternalID(ctx context.Context, externalID string) (*store.Property, error)
	FindPropertyByParcel(ctx context.Context, apn string) (*store.Property, error)
	FindPropertyByLeadID(ctx context.Context, leadID string) (*store.Property, error)
	FindPropertyByAddress(ctx context.Context, addressKey, cityKey string) (*store.Property, error)
	CreateProperty(ctx context.Context, p store.Property) (store.Property, error)
	UpdatePropertyImportFields(ctx context.Context, id uuid.UUID, f store.PropertyImportFields) (store.Property, error)

	FindContactByName(ctx context.Context, propertyID uuid.UUID, name string) (*store.Contact, error)
	CreateContact(ctx context.Context, c store.Contact) (store.Contact, error)
	UpdateContactImportFields(ctx context.Context, id uuid.UUID, f store.ContactImportFields) (store.Contact, error)

	ListContactPhones(ctx context.Context, contactID uuid.UUID) ([]store.ContactPhone, error)
	CreateContactPhone(ctx context.Context, p store.ContactPhone) (store.ContactPhone, error)
	UpdateContactPhoneMetadata(ctx context.Context, id uuid.UUID, phoneType, carrier *string, dnc, prepaid *bool, activityStatus *string) error

	ListContactEmails(ctx context.Context, contactID uuid.UUID) ([]store.ContactEmail, error)
	CreateContactEmail(ctx context.Context, e store.ContactEmail) (store.ContactEmail, error)
	UpdateContactEmailType(ctx context.Context, id uuid.UUID, emailType *string) error

	ListContactAddresses(ctx context.Context, contactID uuid.UUID) ([]store.ContactAddress, error)
	CreateContactAddress(ctx context.Context, a store.ContactAddress) (store.ContactAddress, error)

	ListContactSocialProfiles(ctx context.Context, contactID uuid.UUID) ([]store.ContactSocialProfile, error)
	CreateContactSocialProfile(ctx context.Context, sp store.ContactSocialProfile) (store.ContactSocialProfile, error)
}

// ResolveProperty finds the stored property a property-file row refers to.
// Identifier strength decides: external id first, then parcel number, then
// the normalized address+city pair. Rows carrying a stale address still land
// on the right record when a stronger identifier matches.
func ResolveProperty(ctx context.Context, st Store, rec PropertyRecord) (*store.Property, string, error) {
	if rec.ExternalPropertyID != nil {
		p, err := st.FindPropertyByExternalID(ctx, *rec.ExternalPropertyID)
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchExternalID, nil
		}
	}

	if rec.APNParcelID != nil {
		p, err := st.FindPropertyByParcel(ctx, *rec.APNParcelID)
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchAPN, nil
		}
	}

	if rec.AddressLine1 != nil && rec.City != nil {
		p, err := st.FindPropertyByAddress(ctx, AddressKey(*rec.AddressLine1), AddressKey(*rec.City))
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchAddress, nil
		}
	}

	return nil, MatchNone, nil
}

// ResolvePropertyForContact finds the property a contact-file row belongs
// to. Contact exports carry the lead id when they originate from this system,
// so it outranks the parcel number; the address is a full-string cell, so
// only its street token participates in matching.
func ResolvePropertyForContact(ctx context.Context, st Store, mapped map[string]string) (*store.Property, string, error) {
	if leadID := CleanString(mapped[fieldExternalLeadID]); leadID != nil {
		p, err := st.FindPropertyByLeadID(ctx, *leadID)
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchLeadID, nil
		}
	}

	if apn := CleanString(mapped[fieldAPNParcelID]); apn != nil {
		p, err := st.FindPropertyByParcel(ctx, *apn)
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchAPN, nil
		}
	}

	address := CleanString(mapped[fieldPropertyAddress])
	city := CleanString(mapped[fieldPropertyCity])
	if address != nil && city != nil {
		p, err := st.FindPropertyByAddress(ctx, StreetToken(*address), AddressKey(*city))
		if err != nil {
			return nil, MatchNone, err
		}
		if p != nil {
			return p, MatchAddress, nil
		}
	}

	return nil, MatchNone, nil
}
