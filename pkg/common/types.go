package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text form of a date of birth.
const DateLayout = "2006-01-02"

// Record is one personnel entry of the cabinet.
//
// A zero ID on a candidate passed to a store means "assign one".
type Record struct {
	ID            int32
	FirstName     string
	LastName      string
	DateOfBirth   time.Time
	JobExperience int16
	MonthlyPay    decimal.Decimal
	Gender        rune
}

// String is meant for debug output.
func (r Record) String() string {
	return fmt.Sprintf("Record{ID: %d, Name: %s %s, DOB: %s, Exp: %d, Pay: %s, Gender: %c}",
		r.ID, r.FirstName, r.LastName, r.DateOfBirth.Format(DateLayout), r.JobExperience, r.MonthlyPay.String(), r.Gender)
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Equal reports whether both records carry the same field values.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.FirstName == o.FirstName &&
		r.LastName == o.LastName &&
		r.DateOfBirth.Equal(o.DateOfBirth) &&
		r.JobExperience == o.JobExperience &&
		r.MonthlyPay.Equal(o.MonthlyPay) &&
		r.Gender == o.Gender
}
