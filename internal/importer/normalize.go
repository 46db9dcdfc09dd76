package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalizers are total: any input that cannot be coerced yields nil instead
// of an error, so a junk cell never takes down a whole row.

// excelEpochDays is the offset between the Excel 1900 date system
// (day 0 = 1899-12-30) and the Unix epoch, in days.
const excelEpochDays = 25569

// ParseNumber coerces a currency- or percent-formatted cell to a float.
func ParseNumber(raw string) *float64 {
	cleaned := strings.TrimSpace(strings.NewReplacer("$", "", ",", "", "%", "").Replace(raw))
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseInt is ParseNumber rounded to the nearest integer, for year and count
// columns.
func ParseInt(raw string) *int {
	v := ParseNumber(raw)
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

// ParsePercent returns an integer percentage. A bare value in (0,1] is read
// as a fraction and scaled by 100; anything else (including an explicit "%"
// suffix) is rounded as a literal percentage. The dual rule disambiguates
// sources that encode "75%" as 0.75 from those that encode it as 75.
func ParsePercent(raw string) *int {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "%", ""))
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if !strings.Contains(raw, "%") && v > 0 && v <= 1 {
		n := int(math.Round(v * 100))
		return &n
	}
	n := int(math.Round(v))
	return &n
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"1-2-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Serials outside this band are not plausible spreadsheet dates; a bare year
// like "2023" would otherwise convert to 1905.
const (
	minExcelSerial = 10000  // 1927-05-18
	maxExcelSerial = 200000 // 2447-07-26
)

// ParseDate reads either an Excel epoch-day serial (days since 1899-12-30) or
// a textual date. Numeric cells outside the plausible serial band are
// rejected. Results are midnight UTC.
func ParseDate(raw string) *time.Time {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(cleaned, 64); err == nil {
		if serial < minExcelSerial || serial > maxExcelSerial {
			return nil
		}
		days := int64(math.Floor(serial)) - excelEpochDays
		t := time.Unix(days*86400, 0).UTC()
		return &t
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			t := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

// CleanString trims and lifts the empty string to nil.
func CleanString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// CompareKey normalizes a value for equality checks only: trim, collapse
// whitespace runs, lowercase. Never used for storage.
func CompareKey(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// AddressKey normalizes an address for matching: lowercase, dots stripped,
// whitespace collapsed.
func AddressKey(raw string) string {
	return CompareKey(strings.ReplaceAll(raw, ".", ""))
}

// StreetToken extracts the street portion of a possibly-full address string
// ("123 Main St, City, ST 00000") by cutting at the first comma, then applies
// AddressKey. Property files store the street separately; contact exports
// often embed the full string in one cell.
func StreetToken(raw string) string {
	street, _, _ := strings.Cut(raw, ",")
	return AddressKey(street)
}

// NormalizePhone keeps digits plus a single leading "+".
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if normalized == "+" {
		return ""
	}
	return normalized
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseDNC reads data-provider DNC indicator cells ("Do Not Call",
// "Not on DNC") as well as plain boolean spellings. Unknown values map to
// nil so an existing flag is never clobbered.
func ParseDNC(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil
	case "do not call", "dnc", "yes", "y", "true", "1":
		return boolPtr(true)
	case "not on dnc", "no", "n", "false", "0":
		return boolPtr(false)
	default:
		return nil
	}
}

// ParsePrepaid reads "Prepaid" / "Not Prepaid" indicator cells.
func ParsePrepaid(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil
	case "prepaid", "yes", "y", "true", "1":
		return boolPtr(true)
	case "not prepaid", "no", "n", "false", "0":
		return boolPtr(false)
	default:
		return nil
	}
}

// ParseBool reads research-flag cells where anything but an affirmative is
// false.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

func boolPtr(v bool) *bool {
	return &v
}
