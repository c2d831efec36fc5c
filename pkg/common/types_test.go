package common

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRecordFormatsByValueAndPointer(t *testing.T) {
	r := Record{
		ID:            1,
		FirstName:     "Jane",
		LastName:      "Doe",
		DateOfBirth:   Date(1990, time.May, 1),
		JobExperience: 5,
		MonthlyPay:    decimal.RequireFromString("3000.50"),
		Gender:        'F',
	}
	want := "Record{ID: 1, Name: Jane Doe, DOB: " + r.DateOfBirth.Format(DateLayout) + ", Exp: 5, Pay: 3000.5, Gender: F}"
	if got := fmt.Sprint(r); got != want {
		t.Fatalf("value: got %q, want %q", got, want)
	}
	if got := fmt.Sprint(&r); got != want {
		t.Fatalf("pointer: got %q, want %q", got, want)
	}
	if got := fmt.Sprint([]Record{r}); got != "["+want+"]" {
		t.Fatalf("slice: got %q", got)
	}
}

func TestFieldValidity(t *testing.T) {
	if Field(99).Valid() || Field(99).Indexed() {
		t.Fatal("out-of-range field should be neither valid nor indexed")
	}
	if !FieldID.Valid() || FieldID.Indexed() {
		t.Fatal("id is a valid field served without an index")
	}
	for _, f := range IndexedFields {
		if !f.Valid() || !f.Indexed() {
			t.Fatalf("%s should be valid and indexed", f)
		}
	}
}
