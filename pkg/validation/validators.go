// Package validation gates every mutation of a store. Single-field
// validators are composed into a Pipeline built from a configuration profile.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"filecabinet/pkg/common"

	"github.com/shopspring/decimal"
)

// Validator checks one field of a candidate record.
type Validator interface {
	Field() common.Field
	Validate(candidate *common.Record) error
}

// NameLength bounds the length of a name field, counted in UTF-16 code units
// so that it matches the capacity of a slot.
type NameLength struct {
	Target   common.Field
	Min, Max int
}

func (v NameLength) Field() common.Field { return v.Target }

func (v NameLength) Validate(candidate *common.Record) error {
	var name string
	switch v.Target {
	case common.FieldFirstName:
		name = candidate.FirstName
	case common.FieldLastName:
		name = candidate.LastName
	default:
		return fmt.Errorf("validation: %s is not a name field", v.Target)
	}

	if !utf8.ValidString(name) {
		return fail(v.Target, "%s is not valid UTF-8", label(v.Target))
	}
	if strings.TrimSpace(name) == "" {
		return fail(v.Target, "%s is empty", label(v.Target))
	}
	if n := utf16Len(name); n < v.Min || n > v.Max {
		return fail(v.Target, "%s length out of bounds (%d not in [%d, %d])", label(v.Target), n, v.Min, v.Max)
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return fail(v.Target, "%s contains control characters", label(v.Target))
		}
	}
	return nil
}

// DateOfBirthRange accepts dates of birth within [From, To], by calendar day.
type DateOfBirthRange struct {
	From, To time.Time
}

func (v DateOfBirthRange) Field() common.Field { return common.FieldDateOfBirth }

func (v DateOfBirthRange) Validate(candidate *common.Record) error {
	d := candidate.DateOfBirth
	if d.IsZero() {
		return fail(common.FieldDateOfBirth, "date of birth is missing")
	}
	day := common.Date(d.Date())
	if day.Before(v.From) || day.After(v.To) {
		return fail(common.FieldDateOfBirth, "date of birth out of range (%s not in [%s, %s])",
			day.Format(common.DateLayout), v.From.Format(common.DateLayout), v.To.Format(common.DateLayout))
	}
	return nil
}

// JobExperienceRange accepts experience within [Min, Max] years.
type JobExperienceRange struct {
	Min, Max int16
}

func (v JobExperienceRange) Field() common.Field { return common.FieldJobExperience }

func (v JobExperienceRange) Validate(candidate *common.Record) error {
	if e := candidate.JobExperience; e < v.Min || e > v.Max {
		return fail(common.FieldJobExperience, "job experience out of range (%d not in [%d, %d])", e, v.Min, v.Max)
	}
	return nil
}

// MonthlyPayRange accepts pay within [Min, Max].
type MonthlyPayRange struct {
	Min, Max decimal.Decimal
}

func (v MonthlyPayRange) Field() common.Field { return common.FieldMonthlyPay }

func (v MonthlyPayRange) Validate(candidate *common.Record) error {
	p := candidate.MonthlyPay
	if p.LessThan(v.Min) || p.GreaterThan(v.Max) {
		return fail(common.FieldMonthlyPay, "monthly pay out of range (%s not in [%s, %s])", p, v.Min, v.Max)
	}
	return nil
}

// GenderSet accepts a gender character from Allowed.
type GenderSet struct {
	Allowed       []rune
	CaseSensitive bool
}

func (v GenderSet) Field() common.Field { return common.FieldGender }

func (v GenderSet) Validate(candidate *common.Record) error {
	g := candidate.Gender
	for _, a := range v.Allowed {
		if g == a || (!v.CaseSensitive && unicode.ToUpper(g) == unicode.ToUpper(a)) {
			return nil
		}
	}
	return fail(common.FieldGender, "unrecognized gender %q", g)
}

func fail(f common.Field, format string, args ...any) error {
	return &common.ValidationError{Field: f, Reason: fmt.Sprintf(format, args...)}
}

func label(f common.Field) string {
	if f == common.FieldFirstName {
		return "first name"
	}
	return "last name"
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
