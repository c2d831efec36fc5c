package validation

import (
	"unicode/utf16"
	"unicode/utf8"

	"filecabinet/pkg/common"
	"filecabinet/pkg/config"

	"github.com/shopspring/decimal"
)

// Pipeline runs validators in order and stops at the first failure.
type Pipeline struct {
	name       string
	validators []Validator
}

// New composes a pipeline from explicit validators.
func New(name string, validators ...Validator) *Pipeline {
	return &Pipeline{name: name, validators: validators}
}

// FromProfile builds the standard six-field pipeline from resolved bounds.
func FromProfile(p config.Profile) *Pipeline {
	return New(p.Name,
		NameLength{Target: common.FieldFirstName, Min: p.FirstNameMin, Max: p.FirstNameMax},
		NameLength{Target: common.FieldLastName, Min: p.LastNameMin, Max: p.LastNameMax},
		DateOfBirthRange{From: p.DateOfBirthFrom, To: p.DateOfBirthTo},
		JobExperienceRange{Min: p.JobExperienceMin, Max: p.JobExperienceMax},
		MonthlyPayRange{Min: p.MonthlyPayMin, Max: p.MonthlyPayMax},
		GenderSet{Allowed: p.Genders, CaseSensitive: p.GenderCaseSensitive},
	)
}

// ForConfig resolves the named profile of cfg into a pipeline. Malformed
// bounds are reported as *common.ConfigurationError.
func ForConfig(cfg *config.Config, profile string) (*Pipeline, error) {
	p, err := cfg.Profile(profile)
	if err != nil {
		return nil, err
	}
	return FromProfile(p), nil
}

// Default returns the pipeline of the built-in default profile.
func Default() *Pipeline {
	p, err := config.Default().Profile(config.DefaultProfile)
	if err != nil {
		panic(err) // built-in bounds are constant
	}
	return FromProfile(p)
}

func (p *Pipeline) Name() string { return p.name }

// Validate returns a copy of candidate when every validator accepts it.
func (p *Pipeline) Validate(candidate common.Record) (common.Record, error) {
	c := candidate
	if c.ID < 0 {
		return common.Record{}, &common.ValidationError{Field: common.FieldID, Reason: "id must be positive"}
	}
	c.MonthlyPay = fitPay(c.MonthlyPay)
	for _, v := range p.validators {
		if err := v.Validate(&c); err != nil {
			return common.Record{}, err
		}
	}
	if err := fitsSlot(&c); err != nil {
		return common.Record{}, err
	}
	c.DateOfBirth = common.Date(c.DateOfBirth.Date())
	return c, nil
}

// maxPayScale is the largest number of fractional digits a slot can hold.
const maxPayScale = 28

// fitPay drops fractional digits until the pay fits a 96-bit mantissa with
// at most maxPayScale digits after the point. The integer part is never rounded.
func fitPay(d decimal.Decimal) decimal.Decimal {
	if d.Exponent() < -maxPayScale {
		d = d.Round(maxPayScale)
	}
	limit := config.MaxMonthlyPay.Coefficient()
	for d.Exponent() < 0 && d.Coefficient().CmpAbs(limit) > 0 {
		d = d.Round(-d.Exponent() - 1)
	}
	return d
}

// fitsSlot applies the capacity limits of the on-disk layout, so every store
// accepts exactly the records a slot can hold.
func fitsSlot(r *common.Record) error {
	for _, f := range []common.Field{common.FieldFirstName, common.FieldLastName} {
		name := r.FirstName
		if f == common.FieldLastName {
			name = r.LastName
		}
		if !utf8.ValidString(name) {
			return fail(f, "%s is not valid UTF-8", label(f))
		}
		if n := utf16Len(name); n > config.MaxNameLength {
			return fail(f, "%s exceeds slot capacity (%d > %d UTF-16 units)", label(f), n, config.MaxNameLength)
		}
	}
	if r.MonthlyPay.Abs().GreaterThan(config.MaxMonthlyPay) {
		return fail(common.FieldMonthlyPay, "monthly pay exceeds slot capacity")
	}
	if g := r.Gender; g <= 0 || g > 0xFFFF || utf16.IsSurrogate(g) {
		return fail(common.FieldGender, "gender %q does not fit one UTF-16 unit", g)
	}
	return nil
}
