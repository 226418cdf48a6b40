package bankformat

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// ErrUnknownBank is returned when a bank id has no declared format
var ErrUnknownBank = errors.New("unknown bank code")

// Field is a canonical transaction field that a statement column maps to
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
)

// RequiredFields are the fields every statement must provide, in reporting order
var RequiredFields = []Field{FieldDate, FieldDescription, FieldAmount}

// Config declares how one bank lays out its statement exports
type Config struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"name"`
	// Columns lists acceptable header names per field, most preferred first
	Columns map[Field][]string `yaml:"columns"`
	// DateFormat is a strptime-style pattern. Empty means the sheet already
	// carries native date values.
	DateFormat       string `yaml:"date_format"`
	HeaderMarker     string `yaml:"header_marker"`
	SkipInitialRows  int    `yaml:"skip_initial_rows"`
	UseBoldForIncome bool   `yaml:"use_bold_for_income"`
}

// NativeDates reports whether the bank relies on the sheet's own date values
func (c Config) NativeDates() bool {
	return c.DateFormat == ""
}

// Layout returns the Go time layout for the bank's date format
func (c Config) Layout() string {
	if c.NativeDates() {
		return ""
	}
	return StrptimeLayout(c.DateFormat)
}

// Validate checks that the declaration is usable
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("bank id is required")
	}
	if c.HeaderMarker == "" {
		return fmt.Errorf("bank %s: header marker is required", c.ID)
	}
	if c.SkipInitialRows < 0 {
		return fmt.Errorf("bank %s: skip_initial_rows must not be negative", c.ID)
	}
	for _, f := range RequiredFields {
		if len(c.Columns[f]) == 0 {
			return fmt.Errorf("bank %s: no column names declared for %s", c.ID, f)
		}
	}
	return nil
}

// Registry holds the known bank formats. It is populated at startup and only
// read afterwards.
type Registry struct {
	banks map[string]Config
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		banks: make(map[string]Config),
	}
}

// Default returns a registry populated with the built-in bank formats
func Default() *Registry {
	r := NewRegistry()
	for _, c := range builtin {
		r.Register(c)
	}
	return r
}

// Register adds a bank format, replacing any existing entry with the same id
func (r *Registry) Register(c Config) {
	r.banks[c.ID] = c
}

// Get returns the format for a bank id
func (r *Registry) Get(id string) (Config, error) {
	c, ok := r.banks[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownBank, id)
	}
	return c, nil
}

// List returns all formats ordered by id
func (r *Registry) List() []Config {
	ids := make([]string, 0, len(r.banks))
	for id := range r.banks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	configs := make([]Config, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, r.banks[id])
	}
	return configs
}

var strptimeDirectives = strings.NewReplacer(
	"%d", "2",
	"%m", "1",
	"%Y", "2006",
	"%y", "06",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%B", "January",
	"%%", "%",
)

// StrptimeLayout converts a strptime-style pattern such as %d/%m/%Y into a
// Go parse layout. Day and month accept a missing leading zero, as strptime does.
func StrptimeLayout(format string) string {
	return strptimeDirectives.Replace(format)
}
