// Package regnumber formats, parses, and validates admission numbers.
//
// An admission number encodes the issuing school, two-digit admission year,
// class code, and a per-(year, class) sequence:
//
//	ELBA/25/SS3B/011
//
// The sequence is always assigned by the storage layer's atomic counter;
// this package never derives it by counting rows.
package regnumber

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pattern is the canonical admission number format, enforced both when a
// number is assigned and when one is looked up.
const Pattern = `^[A-Z]{3,4}/\d{2}/[A-Z0-9]{2,5}/\d{3}$`

var numberRe = regexp.MustCompile(Pattern)

// Number is a decoded admission number.
type Number struct {
	SchoolCode string
	Year       int
	ClassCode  string
	Sequence   int
}

// String re-encodes the number in canonical form.
func (n Number) String() string {
	return Format(n.SchoolCode, n.Year, n.ClassCode, n.Sequence)
}

// Format renders an admission number. Inputs are normalised to upper case;
// the sequence is zero-padded to three digits.
func Format(schoolCode string, year int, classCode string, seq int) string {
	return fmt.Sprintf("%s/%02d/%s/%03d",
		strings.ToUpper(strings.TrimSpace(schoolCode)),
		year%100,
		strings.ToUpper(strings.TrimSpace(classCode)),
		seq,
	)
}

// Validate reports whether raw matches the canonical pattern.
func Validate(raw string) error {
	if !numberRe.MatchString(raw) {
		return fmt.Errorf("admission number %q does not match %s", raw, Pattern)
	}
	return nil
}

// Parse decodes a canonical admission number into its components.
func Parse(raw string) (Number, error) {
	if err := Validate(raw); err != nil {
		return Number{}, err
	}
	parts := strings.Split(raw, "/")
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Number{}, fmt.Errorf("parse year: %w", err)
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil {
		return Number{}, fmt.Errorf("parse sequence: %w", err)
	}
	return Number{
		SchoolCode: parts[0],
		Year:       year,
		ClassCode:  parts[2],
		Sequence:   seq,
	}, nil
}

// Next builds the admission number for a freshly assigned sequence value,
// failing closed when the school or class code is missing or malformed.
func Next(schoolCode string, year int, classCode string, seq int) (string, error) {
	schoolCode = strings.ToUpper(strings.TrimSpace(schoolCode))
	classCode = strings.ToUpper(strings.TrimSpace(classCode))
	if schoolCode == "" {
		return "", fmt.Errorf("school code is required")
	}
	if classCode == "" {
		return "", fmt.Errorf("class code is required")
	}
	if seq <= 0 {
		return "", fmt.Errorf("sequence must be positive, got %d", seq)
	}
	number := Format(schoolCode, year, classCode, seq)
	if err := Validate(number); err != nil {
		return "", err
	}
	return number, nil
}
