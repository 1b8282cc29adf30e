package statebenefits

import (
	"regexp"
	"strings"
)

// The upstream document is a fixed-layout government PDF whose contact
// table is extracted (by the offline tabula step) into CSV with
// multi-line cells. Column layout:
//
//	column 0: state or program code
//	column 1: office name, phone, fax and email, newline-delimited
//	column 2: multi-line mailing address, last line anchored by "City, ST 12345"
type contactRow struct {
	Code    string
	Name    string
	Phone   string
	Fax     string
	Email   string
	Street  string
	City    string
	State   string
	ZipCode string
}

var (
	phoneRe   = regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	cityLineRe = regexp.MustCompile(`^(.*?),?\s+([A-Z]{2}),?\s+(\d{5}(?:-\d{4})?)$`)
)

// parseContactColumn splits the newline-delimited contact cell into
// name, phone, fax and email. The first non-empty line is the office
// name; the first phone-shaped line is the phone unless labeled as fax;
// any line containing "@" is the email.
func parseContactColumn(cell string) (name, phone, fax, email string) {
	for _, line := range strings.Split(cell, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.Contains(line, "@"):
			if email == "" {
				email = strings.TrimSpace(strings.TrimPrefix(line, "Email:"))
			}
		case phoneRe.MatchString(line):
			number := phoneRe.FindString(line)
			if strings.Contains(strings.ToLower(line), "fax") {
				if fax == "" {
					fax = number
				}
			} else if phone == "" {
				phone = number
			}
		default:
			if name == "" {
				name = line
			}
		}
	}
	return name, phone, fax, email
}

// parseAddressColumn splits the multi-line address cell into street,
// city, state and zip. The last line matching the "City, ST 12345"
// anchor carries the city/state/zip; everything above it is the street.
func parseAddressColumn(cell string) (street, city, state, zip string) {
	var lines []string
	for _, line := range strings.Split(cell, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", "", "", ""
	}

	last := lines[len(lines)-1]
	if m := cityLineRe.FindStringSubmatch(last); m != nil {
		city, state, zip = m[1], m[2], m[3]
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, ", "), city, state, zip
}

// parseRow applies both column heuristics to one extracted table row.
// Returns false when the row carries no usable office name or no code;
// the code keys the office's source URL, so codeless rows would collide.
func parseRow(cols []string) (contactRow, bool) {
	if len(cols) < 3 {
		return contactRow{}, false
	}

	row := contactRow{Code: strings.TrimSpace(cols[0])}
	row.Name, row.Phone, row.Fax, row.Email = parseContactColumn(cols[1])
	row.Street, row.City, row.State, row.ZipCode = parseAddressColumn(cols[2])

	if row.Code == "" || row.Name == "" {
		return contactRow{}, false
	}
	return row, true
}
