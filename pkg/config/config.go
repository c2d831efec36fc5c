package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"filecabinet/pkg/common"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	ModeMemory = "memory"
	ModeFile   = "file"

	DefaultProfile = "default"
	CustomProfile  = "custom"

	// MaxNameLength is the capacity of a name field in a slot, in UTF-16 units.
	MaxNameLength = 60
)

// MaxMonthlyPay is the largest pay a slot holds: a 96-bit mantissa at scale 0.
var MaxMonthlyPay = decimal.RequireFromString("79228162514264337593543950335")

type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Validation ValidationConfig `yaml:"validation"`
}

type StorageConfig struct {
	Mode    string `yaml:"mode"`    // memory | file
	Path    string `yaml:"path"`    // slot file used in file mode
	Archive string `yaml:"archive"` // default SQLite snapshot archive
	Cache   *bool  `yaml:"cache"`

	// IndexDegree is the B-tree degree of each field index; 0 keeps the default.
	IndexDegree int `yaml:"index_degree"`
}

type ValidationConfig struct {
	Profile  string                   `yaml:"profile"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is the raw, textual form of a validation profile.
type ProfileConfig struct {
	FirstName     LengthBounds `yaml:"first_name"`
	LastName      LengthBounds `yaml:"last_name"`
	DateOfBirth   DateBounds   `yaml:"date_of_birth"`
	JobExperience IntBounds    `yaml:"job_experience"`
	MonthlyPay    PayBounds    `yaml:"monthly_pay"`
	Gender        GenderSet    `yaml:"gender"`
}

type LengthBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type DateBounds struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type IntBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type PayBounds struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type GenderSet struct {
	Allowed       []string `yaml:"allowed"`
	CaseSensitive bool     `yaml:"case_sensitive"`
}

// Profile is a resolved set of validation bounds.
type Profile struct {
	Name                string
	FirstNameMin        int
	FirstNameMax        int
	LastNameMin         int
	LastNameMax         int
	DateOfBirthFrom     time.Time
	DateOfBirthTo       time.Time
	JobExperienceMin    int16
	JobExperienceMax    int16
	MonthlyPayMin       decimal.Decimal
	MonthlyPayMax       decimal.Decimal
	Genders             []rune
	GenderCaseSensitive bool
}

func defaultProfiles() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		DefaultProfile: {
			FirstName:     LengthBounds{Min: 2, Max: 50},
			LastName:      LengthBounds{Min: 2, Max: 50},
			DateOfBirth:   DateBounds{From: "1960-01-01", To: "1990-12-31"},
			JobExperience: IntBounds{Min: 0, Max: 20},
			MonthlyPay:    PayBounds{Min: "20", Max: "5000"},
			Gender:        GenderSet{Allowed: []string{"m", "f"}},
		},
		CustomProfile: {
			FirstName:     LengthBounds{Min: 3, Max: 60},
			LastName:      LengthBounds{Min: 3, Max: 60},
			DateOfBirth:   DateBounds{From: "1940-01-01", To: "2005-12-31"},
			JobExperience: IntBounds{Min: 1, Max: 30},
			MonthlyPay:    PayBounds{Min: "500", Max: "100000"},
			Gender:        GenderSet{Allowed: []string{"M", "F"}, CaseSensitive: true},
		},
	}
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cache := true
	return &Config{
		Storage: StorageConfig{
			Mode:    ModeMemory,
			Path:    "cabinet.db",
			Archive: "cabinet-snapshot.sqlite",
			Cache:   &cache,
		},
		Validation: ValidationConfig{
			Profile:  DefaultProfile,
			Profiles: defaultProfiles(),
		},
	}
}

// Load reads the YAML file at configPath over the defaults. With an empty
// path the usual locations are searched and a missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/cabinet.yaml", "cabinet.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, cfg.Validate()
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = ModeMemory
	}
	cfg.Storage.Mode = strings.ToLower(cfg.Storage.Mode)
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "cabinet.db"
	}
	if cfg.Storage.Archive == "" {
		cfg.Storage.Archive = "cabinet-snapshot.sqlite"
	}
	if cfg.Storage.Cache == nil {
		cache := true
		cfg.Storage.Cache = &cache
	}
	if cfg.Validation.Profile == "" {
		cfg.Validation.Profile = DefaultProfile
	}
	if cfg.Validation.Profiles == nil {
		cfg.Validation.Profiles = map[string]ProfileConfig{}
	}
	for name, p := range defaultProfiles() {
		if _, ok := cfg.Validation.Profiles[name]; !ok {
			cfg.Validation.Profiles[name] = p
		}
	}
}

// CacheEnabled reports whether stores should memoize lookups.
func (c *Config) CacheEnabled() bool {
	return c.Storage.Cache == nil || *c.Storage.Cache
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Validation.Profiles))
	for name := range c.Validation.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks storage settings and every profile.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case ModeMemory, ModeFile:
	default:
		return &common.ConfigurationError{Key: "storage.mode", Reason: fmt.Sprintf("unknown mode %q", c.Storage.Mode)}
	}
	if c.Storage.IndexDegree < 0 || c.Storage.IndexDegree == 1 {
		return &common.ConfigurationError{Key: "storage.index_degree", Reason: fmt.Sprintf("degree %d, want 0 or at least 2", c.Storage.IndexDegree)}
	}
	if c.Storage.Mode == ModeFile && c.Storage.Path == "" {
		return &common.ConfigurationError{Key: "storage.path", Reason: "required in file mode"}
	}
	for _, name := range c.ProfileNames() {
		if _, err := c.Profile(name); err != nil {
			return err
		}
	}
	if _, ok := c.Validation.Profiles[c.Validation.Profile]; !ok {
		return &common.ConfigurationError{Key: "validation.profile", Reason: fmt.Sprintf("unknown profile %q", c.Validation.Profile)}
	}
	return nil
}

// Profile resolves the named profile. An empty name selects the configured one.
func (c *Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = c.Validation.Profile
	}
	raw, ok := c.Validation.Profiles[name]
	if !ok {
		return Profile{}, &common.ConfigurationError{Key: "validation.profile", Reason: fmt.Sprintf("unknown profile %q", name)}
	}
	return raw.Resolve(name)
}

// Resolve parses and checks the bounds of a profile.
func (p ProfileConfig) Resolve(name string) (Profile, error) {
	key := func(field string) string { return "validation.profiles." + name + "." + field }

	if err := p.FirstName.check(key("first_name")); err != nil {
		return Profile{}, err
	}
	if err := p.LastName.check(key("last_name")); err != nil {
		return Profile{}, err
	}

	from, err := common.ParseDate(p.DateOfBirth.From)
	if err != nil {
		return Profile{}, &common.ConfigurationError{Key: key("date_of_birth.from"), Reason: fmt.Sprintf("bad date %q", p.DateOfBirth.From)}
	}
	to, err := common.ParseDate(p.DateOfBirth.To)
	if err != nil {
		return Profile{}, &common.ConfigurationError{Key: key("date_of_birth.to"), Reason: fmt.Sprintf("bad date %q", p.DateOfBirth.To)}
	}
	if to.Before(from) {
		return Profile{}, &common.ConfigurationError{Key: key("date_of_birth"), Reason: "from is after to"}
	}

	if p.JobExperience.Min < 0 || p.JobExperience.Max > 1<<15-1 || p.JobExperience.Min > p.JobExperience.Max {
		return Profile{}, &common.ConfigurationError{Key: key("job_experience"), Reason: fmt.Sprintf("bad range [%d, %d]", p.JobExperience.Min, p.JobExperience.Max)}
	}

	payMin, err := decimal.NewFromString(p.MonthlyPay.Min)
	if err != nil {
		return Profile{}, &common.ConfigurationError{Key: key("monthly_pay.min"), Reason: fmt.Sprintf("bad decimal %q", p.MonthlyPay.Min)}
	}
	payMax, err := decimal.NewFromString(p.MonthlyPay.Max)
	if err != nil {
		return Profile{}, &common.ConfigurationError{Key: key("monthly_pay.max"), Reason: fmt.Sprintf("bad decimal %q", p.MonthlyPay.Max)}
	}
	if payMin.IsNegative() || payMin.GreaterThan(payMax) {
		return Profile{}, &common.ConfigurationError{Key: key("monthly_pay"), Reason: fmt.Sprintf("bad range [%s, %s]", payMin, payMax)}
	}
	if payMax.GreaterThan(MaxMonthlyPay) {
		return Profile{}, &common.ConfigurationError{Key: key("monthly_pay.max"), Reason: fmt.Sprintf("%s exceeds slot capacity %s", payMax, MaxMonthlyPay)}
	}

	if len(p.Gender.Allowed) == 0 {
		return Profile{}, &common.ConfigurationError{Key: key("gender.allowed"), Reason: "empty set"}
	}
	genders := make([]rune, 0, len(p.Gender.Allowed))
	for _, g := range p.Gender.Allowed {
		if utf8.RuneCountInString(g) != 1 {
			return Profile{}, &common.ConfigurationError{Key: key("gender.allowed"), Reason: fmt.Sprintf("%q is not a single character", g)}
		}
		r, _ := utf8.DecodeRuneInString(g)
		if r > 0xFFFF {
			return Profile{}, &common.ConfigurationError{Key: key("gender.allowed"), Reason: fmt.Sprintf("%q does not fit a slot", g)}
		}
		genders = append(genders, r)
	}

	return Profile{
		Name:                name,
		FirstNameMin:        p.FirstName.Min,
		FirstNameMax:        p.FirstName.Max,
		LastNameMin:         p.LastName.Min,
		LastNameMax:         p.LastName.Max,
		DateOfBirthFrom:     from,
		DateOfBirthTo:       to,
		JobExperienceMin:    int16(p.JobExperience.Min),
		JobExperienceMax:    int16(p.JobExperience.Max),
		MonthlyPayMin:       payMin,
		MonthlyPayMax:       payMax,
		Genders:             genders,
		GenderCaseSensitive: p.Gender.CaseSensitive,
	}, nil
}

func (b LengthBounds) check(key string) error {
	if b.Min < 1 || b.Max > MaxNameLength || b.Min > b.Max {
		return &common.ConfigurationError{Key: key, Reason: fmt.Sprintf("bad range [%d, %d], want 1 <= min <= max <= %d", b.Min, b.Max, MaxNameLength)}
	}
	return nil
}
