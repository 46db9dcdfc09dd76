package importer

import (
	"fmt"
	"strings"
)

const (
	maxEmbeddedContacts  = 10
	maxPhonesPerContact  = 3
	maxEmailsPerContact  = 3
	maxContactFileSlots  = 10
	facebookPlatformName = "facebook"
)

// ExtractEmbeddedContacts reads contact_<n>_* column groups off a property
// row. A slot without a name is skipped entirely. facebookprofile<n> columns
// have no slot linkage in the source files, so profile n is attached to the
// n-th extracted contact; that pairing is best effort.
func ExtractEmbeddedContacts(row RawRow) []ContactRecord {
	var contacts []ContactRecord
	for n := 1; n <= maxEmbeddedContacts; n++ {
		name := CleanString(row.Get(fmt.Sprintf("contact_%d_name", n)))
		if name == nil {
			continue
		}

		c := ContactRecord{
			Name:  *name,
			Flags: CleanString(row.Get(fmt.Sprintf("contact_%d_flags", n))),
		}

		for p := 1; p <= maxPhonesPerContact; p++ {
			prefix := fmt.Sprintf("contact_%d_phone%d", n, p)
			number := NormalizePhone(row.Get(prefix))
			if number == "" {
				continue
			}
			c.Phones = append(c.Phones, PhoneRecord{
				Number:         number,
				PhoneType:      CleanString(row.Get(prefix + "_type")),
				Carrier:        CleanString(row.Get(prefix + "_carrier")),
				ActivityStatus: CleanString(row.Get(prefix + "_activity_status")),
				DNC:            ParseDNC(row.Get(prefix + "_dnc")),
				Prepaid:        ParsePrepaid(row.Get(prefix + "_prepaid")),
				IsPrimary:      len(c.Phones) == 0,
			})
		}

		for e := 1; e <= maxEmailsPerContact; e++ {
			email := NormalizeEmail(row.Get(fmt.Sprintf("contact_%d_email%d", n, e)))
			if email == "" {
				continue
			}
			c.Emails = append(c.Emails, EmailRecord{
				Email:     email,
				IsPrimary: len(c.Emails) == 0,
			})
		}

		contacts = append(contacts, c)
	}

	// Positional zip of standalone facebook profile columns.
	for i := range contacts {
		url := CleanString(row.Get(fmt.Sprintf("facebookprofile%d", i+1)))
		if url == nil {
			continue
		}
		contacts[i].SocialProfiles = append(contacts[i].SocialProfiles, SocialProfileRecord{
			Platform:   facebookPlatformName,
			ProfileURL: *url,
		})
	}

	return contacts
}

// contactFileCell reads the first non-blank among several keys.
func contactFileCell(row RawRow, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(row.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// ContactName resolves the display name from a canonical contact-file row:
// an explicit name column wins, otherwise first+last when both are present.
func ContactName(mapped map[string]string) string {
	if name := CleanString(mapped[fieldContactName]); name != nil {
		return *name
	}
	first := CleanString(mapped[fieldFirstName])
	last := CleanString(mapped[fieldLastName])
	if first != nil && last != nil {
		return *first + " " + *last
	}
	return ""
}

// ParseContactRow normalizes one skip-trace contact-file row. Phone slots are
// phone_<p> with sibling metadata columns; slot 1 also answers to the bare
// "phone"/"phone_number" spellings. Emails are email_address_<e> with the
// same fallbacks.
func ParseContactRow(row RawRow, mapped map[string]string) ContactRecord {
	c := ContactRecord{
		Name:          ContactName(mapped),
		FirstName:     CleanString(mapped[fieldFirstName]),
		LastName:      CleanString(mapped[fieldLastName]),
		Relationship:  CleanString(mapped[fieldRelationship]),
		Age:           ParseInt(mapped[fieldAge]),
		Gender:        CleanString(mapped[fieldGender]),
		MaritalStatus: CleanString(mapped[fieldMaritalStatus]),
		NetAssetValue: ParseNumber(mapped[fieldNetAssetValue]),
		Flags:         CleanString(mapped[fieldContactFlags]),
	}

	for p := 1; p <= maxContactFileSlots; p++ {
		keys := []string{
			fmt.Sprintf("phone_%d", p),
			fmt.Sprintf("phone%d", p),
			fmt.Sprintf("phone %d", p),
		}
		if p == 1 {
			keys = append(keys, "phone", "phone_number", "phone number")
		}
		number := NormalizePhone(contactFileCell(row, keys...))
		if number == "" {
			continue
		}
		prefix := fmt.Sprintf("phone_%d", p)
		c.Phones = append(c.Phones, PhoneRecord{
			Number:         number,
			PhoneType:      CleanString(contactFileCell(row, prefix+"_type", fmt.Sprintf("phone%d_type", p))),
			Carrier:        CleanString(row.Get(prefix + "_carrier")),
			ActivityStatus: CleanString(row.Get(prefix + "_activity_status")),
			DNC:            ParseDNC(contactFileCell(row, prefix+"_dnc_indicator", prefix+"_dnc")),
			Prepaid:        ParsePrepaid(contactFileCell(row, prefix+"_prepaid_indicator", prefix+"_prepaid")),
			IsPrimary:      len(c.Phones) == 0,
		})
	}

	for e := 1; e <= maxContactFileSlots; e++ {
		keys := []string{
			fmt.Sprintf("email_address_%d", e),
			fmt.Sprintf("email address %d", e),
			fmt.Sprintf("email_%d", e),
			fmt.Sprintf("email%d", e),
			fmt.Sprintf("email %d", e),
		}
		if e == 1 {
			keys = append(keys, "email", "email_address", "email address")
		}
		email := NormalizeEmail(contactFileCell(row, keys...))
		if email == "" {
			continue
		}
		c.Emails = append(c.Emails, EmailRecord{
			Email:     email,
			IsPrimary: len(c.Emails) == 0,
		})
	}

	if addr := CleanString(mapped[fieldMailingAddress]); addr != nil {
		c.Addresses = append(c.Addresses, AddressRecord{
			AddressLine1: *addr,
			City:         CleanString(mapped[fieldMailingCity]),
			State:        cleanState(mapped[fieldMailingState]),
			Zip:          CleanString(mapped[fieldMailingZipcode]),
		})
	}

	return c
}
