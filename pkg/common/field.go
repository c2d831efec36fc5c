package common

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names one attribute of a Record.
type Field int

const (
	FieldID Field = iota
	FieldFirstName
	FieldLastName
	FieldDateOfBirth
	FieldJobExperience
	FieldMonthlyPay
	FieldGender

	fieldCount
)

// IndexedFields lists the fields kept in a store's index set, in validation order.
var IndexedFields = []Field{
	FieldFirstName,
	FieldLastName,
	FieldDateOfBirth,
	FieldJobExperience,
	FieldMonthlyPay,
	FieldGender,
}

// dateLayouts are accepted when parsing a lookup key or CLI input.
var dateLayouts = []string{DateLayout, "01/02/2006", "2006/01/02", "02-Jan-2006"}

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldFirstName:
		return "firstname"
	case FieldLastName:
		return "lastname"
	case FieldDateOfBirth:
		return "dateofbirth"
	case FieldJobExperience:
		return "jobexperience"
	case FieldMonthlyPay:
		return "monthlypay"
	case FieldGender:
		return "gender"
	default:
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	return f >= FieldID && f < fieldCount
}

// Indexed reports whether the field has an index in the store.
func (f Field) Indexed() bool {
	return f > FieldID && f < fieldCount
}

// ParseField resolves a field name case-insensitively. Underscores, dashes
// and a few short aliases are accepted.
func ParseField(name string) (Field, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "", "-", "").Replace(n)
	switch n {
	case "id":
		return FieldID, true
	case "firstname", "first":
		return FieldFirstName, true
	case "lastname", "last":
		return FieldLastName, true
	case "dateofbirth", "dob", "birthday":
		return FieldDateOfBirth, true
	case "jobexperience", "experience", "exp":
		return FieldJobExperience, true
	case "monthlypay", "pay", "salary":
		return FieldMonthlyPay, true
	case "gender", "sex":
		return FieldGender, true
	}
	return 0, false
}

// Key derives the normalized index key of r for field f.
func (f Field) Key(r *Record) string {
	switch f {
	case FieldID:
		return strconv.FormatInt(int64(r.ID), 10)
	case FieldFirstName:
		return normalizeText(r.FirstName)
	case FieldLastName:
		return normalizeText(r.LastName)
	case FieldDateOfBirth:
		return r.DateOfBirth.Format(DateLayout)
	case FieldJobExperience:
		return strconv.FormatInt(int64(r.JobExperience), 10)
	case FieldMonthlyPay:
		return r.MonthlyPay.String()
	case FieldGender:
		return strings.ToUpper(string(r.Gender))
	}
	return ""
}

// Normalize turns user-supplied text into the key form produced by Key.
// ok is false when the text cannot denote a value of the field; such a key
// matches nothing.
func (f Field) Normalize(raw string) (key string, ok bool) {
	raw = strings.TrimSpace(raw)
	switch f {
	case FieldID:
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(id, 10), true
	case FieldFirstName, FieldLastName:
		return normalizeText(raw), true
	case FieldDateOfBirth:
		d, err := ParseDate(raw)
		if err != nil {
			return "", false
		}
		return d.Format(DateLayout), true
	case FieldJobExperience:
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case FieldMonthlyPay:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return "", false
		}
		return d.String(), true
	case FieldGender:
		rs := []rune(raw)
		if len(rs) != 1 {
			return "", false
		}
		return strings.ToUpper(raw), true
	}
	return "", false
}

// ParseDate accepts the canonical layout and a few common alternatives.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		t, perr := time.Parse(layout, s)
		if perr == nil {
			return t, nil
		}
		err = perr
	}
	return time.Time{}, err
}

func normalizeText(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
