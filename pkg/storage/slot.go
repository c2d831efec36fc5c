package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"filecabinet/pkg/common"

	"github.com/shopspring/decimal"
)

// [Status 2B] [ID 4B] [FirstName 120B] [LastName 120B] [Year 4B] [Month 4B] [Day 4B]
// [Experience 2B] [Pay 16B] [Gender 2B]

const (
	SlotSize = 278

	nameUnits = 60
	nameBytes = nameUnits * 2

	offStatus     = 0
	offID         = 2
	offFirstName  = offID + 4
	offLastName   = offFirstName + nameBytes
	offYear       = offLastName + nameBytes
	offMonth      = offYear + 4
	offDay        = offMonth + 4
	offExperience = offDay + 4
	offPay        = offExperience + 2
	offGender     = offPay + 16
)

// Slot status values. Any other value is corruption.
const (
	StatusLive    uint16 = 0
	StatusDeleted uint16 = 1
)

var (
	errShortSlot  = errors.New("slot: truncated")
	errBadStatus  = errors.New("slot: unknown status")
	errBadID      = errors.New("slot: id is not positive")
	errBadDate    = errors.New("slot: invalid date")
	errBadDecimal = errors.New("slot: invalid decimal")
	errBadGender  = errors.New("slot: invalid gender")
)

// maxMantissa is the largest magnitude a 96-bit decimal mantissa holds.
var maxMantissa = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))

// EncodeSlot lays r out as one live slot. A field that does not fit its slot
// region is reported as a *common.ValidationError.
func EncodeSlot(r *common.Record) ([]byte, error) {
	buf := make([]byte, SlotSize)

	binary.LittleEndian.PutUint16(buf[offStatus:], StatusLive)
	binary.LittleEndian.PutUint32(buf[offID:], uint32(r.ID))

	if err := putName(buf[offFirstName:offLastName], common.FieldFirstName, r.FirstName); err != nil {
		return nil, err
	}
	if err := putName(buf[offLastName:offYear], common.FieldLastName, r.LastName); err != nil {
		return nil, err
	}

	y, m, d := r.DateOfBirth.Date()
	binary.LittleEndian.PutUint32(buf[offYear:], uint32(int32(y)))
	binary.LittleEndian.PutUint32(buf[offMonth:], uint32(int32(m)))
	binary.LittleEndian.PutUint32(buf[offDay:], uint32(int32(d)))

	binary.LittleEndian.PutUint16(buf[offExperience:], uint16(r.JobExperience))

	if err := putDecimal(buf[offPay:offGender], r.MonthlyPay); err != nil {
		return nil, err
	}

	if r.Gender <= 0 || r.Gender > 0xFFFF || utf16.IsSurrogate(r.Gender) {
		return nil, tooWide(common.FieldGender, "gender %q does not fit one UTF-16 unit", r.Gender)
	}
	binary.LittleEndian.PutUint16(buf[offGender:], uint16(r.Gender))

	return buf, nil
}

// SlotStatus reads the status field without decoding the rest of the slot.
func SlotStatus(buf []byte) (uint16, error) {
	if len(buf) < SlotSize {
		return 0, errShortSlot
	}
	status := binary.LittleEndian.Uint16(buf[offStatus:])
	if status != StatusLive && status != StatusDeleted {
		return 0, fmt.Errorf("%w %d", errBadStatus, status)
	}
	return status, nil
}

// SlotID reads the id field of a slot.
func SlotID(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf[offID:]))
}

// DecodeSlot parses one slot. The status is not interpreted.
func DecodeSlot(buf []byte) (common.Record, error) {
	if len(buf) < SlotSize {
		return common.Record{}, errShortSlot
	}

	r := common.Record{ID: SlotID(buf)}
	if r.ID <= 0 {
		return common.Record{}, errBadID
	}
	r.FirstName = getName(buf[offFirstName:offLastName])
	r.LastName = getName(buf[offLastName:offYear])

	y := int(int32(binary.LittleEndian.Uint32(buf[offYear:])))
	m := int(int32(binary.LittleEndian.Uint32(buf[offMonth:])))
	d := int(int32(binary.LittleEndian.Uint32(buf[offDay:])))
	if y < 1 || y > 9999 || m < 1 || m > 12 || d < 1 || d > 31 {
		return common.Record{}, fmt.Errorf("%w %04d-%02d-%02d", errBadDate, y, m, d)
	}
	dob := common.Date(y, time.Month(m), d)
	if dob.Day() != d {
		return common.Record{}, fmt.Errorf("%w %04d-%02d-%02d", errBadDate, y, m, d)
	}
	r.DateOfBirth = dob

	r.JobExperience = int16(binary.LittleEndian.Uint16(buf[offExperience:]))

	pay, err := getDecimal(buf[offPay:offGender])
	if err != nil {
		return common.Record{}, err
	}
	r.MonthlyPay = pay

	g := rune(binary.LittleEndian.Uint16(buf[offGender:]))
	if g == 0 || utf16.IsSurrogate(g) {
		return common.Record{}, errBadGender
	}
	r.Gender = g

	return r, nil
}

func putName(dst []byte, f common.Field, s string) error {
	if !utf8.ValidString(s) {
		return tooWide(f, "%s is not valid UTF-8", f)
	}
	units := utf16.Encode([]rune(s))
	if len(units) > nameUnits {
		return tooWide(f, "%d UTF-16 units exceed %d", len(units), nameUnits)
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(dst[i*2:], u)
	}
	return nil
}

func getName(src []byte) string {
	units := make([]uint16, 0, nameUnits)
	for i := 0; i < nameUnits; i++ {
		u := binary.LittleEndian.Uint16(src[i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// putDecimal writes the 96-bit mantissa as lo, mid, hi words followed by a
// flags word holding the scale in bits 16-23 and the sign in bit 31.
func putDecimal(dst []byte, d decimal.Decimal) error {
	coef := d.Coefficient()
	exp := d.Exponent()
	scale := int32(0)
	if exp > 0 {
		coef.Mul(coef, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else {
		scale = -exp
	}
	if scale > 28 {
		return tooWide(common.FieldMonthlyPay, "pay %s has more than 28 fractional digits", d)
	}
	neg := coef.Sign() < 0
	coef.Abs(coef)
	if coef.Cmp(maxMantissa) > 0 {
		return tooWide(common.FieldMonthlyPay, "pay %s exceeds 96 bits", d)
	}

	var mant [12]byte
	coef.FillBytes(mant[:])
	// FillBytes is big-endian; the words are stored little-endian, lo first.
	for w := 0; w < 3; w++ {
		word := uint32(mant[11-w*4]) | uint32(mant[10-w*4])<<8 | uint32(mant[9-w*4])<<16 | uint32(mant[8-w*4])<<24
		binary.LittleEndian.PutUint32(dst[w*4:], word)
	}
	flags := uint32(scale) << 16
	if neg {
		flags |= 1 << 31
	}
	binary.LittleEndian.PutUint32(dst[12:], flags)
	return nil
}

func getDecimal(src []byte) (decimal.Decimal, error) {
	flags := binary.LittleEndian.Uint32(src[12:])
	if flags&0x7F00FFFF != 0 {
		return decimal.Decimal{}, fmt.Errorf("%w flags %#x", errBadDecimal, flags)
	}
	scale := int32(flags >> 16 & 0xFF)
	if scale > 28 {
		return decimal.Decimal{}, fmt.Errorf("%w scale %d", errBadDecimal, scale)
	}

	var mant [12]byte
	for w := 0; w < 3; w++ {
		word := binary.LittleEndian.Uint32(src[w*4:])
		mant[11-w*4] = byte(word)
		mant[10-w*4] = byte(word >> 8)
		mant[9-w*4] = byte(word >> 16)
		mant[8-w*4] = byte(word >> 24)
	}
	coef := new(big.Int).SetBytes(mant[:])
	if flags&(1<<31) != 0 {
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, -scale), nil
}

func tooWide(f common.Field, format string, args ...any) error {
	return &common.ValidationError{Field: f, Reason: "slot: " + fmt.Sprintf(format, args...)}
}
