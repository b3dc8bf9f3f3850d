package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"floravision/internal/services"
)

// Rational is an unsigned EXIF rational as stored in GPS tags.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the rational value. Callers must check Den first.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

var dmsNames = [3]string{"degrees", "minutes", "seconds"}

// ConvertDMS turns degree/minute/second rationals plus a hemisphere reference
// into signed decimal degrees. Fewer than three components are accepted and
// the missing ones count as zero.
func ConvertDMS(components []Rational, ref string) (float64, error) {
	if len(components) == 0 {
		return 0, services.Wrap(services.ErrConversion, "geo", "convert dms", "no components", nil)
	}
	if len(components) > 3 {
		components = components[:3]
	}
	divisors := [3]float64{1, 60, 3600}
	var value float64
	for i, c := range components {
		if c.Den == 0 {
			return 0, services.Wrap(services.ErrConversion, "geo", "convert dms",
				fmt.Sprintf("zero denominator in %s", dmsNames[i]), nil)
		}
		value += c.Float() / divisors[i]
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, services.Wrap(services.ErrConversion, "geo", "convert dms", "value not finite", nil)
	}
	if isNegativeRef(ref) {
		value = -value
	}
	return value, nil
}

func isNegativeRef(ref string) bool {
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return true
	default:
		return false
	}
}

// ParseRational accepts "n/d" or plain decimal text such as "14" or "14.25".
func ParseRational(text string) (Rational, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Rational{}, services.Wrap(services.ErrConversion, "geo", "parse rational", "empty value", nil)
	}
	if num, den, ok := strings.Cut(text, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Rational{}, services.Wrap(services.ErrConversion, "geo", "parse rational",
				fmt.Sprintf("invalid numerator %q", num), err)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil {
			return Rational{}, services.Wrap(services.ErrConversion, "geo", "parse rational",
				fmt.Sprintf("invalid denominator %q", den), err)
		}
		return Rational{Num: n, Den: d}, nil
	}

	whole, frac, _ := strings.Cut(text, ".")
	if len(frac) > 9 {
		frac = frac[:9]
	}
	digits := whole + frac
	if digits == "" || digits == "-" || digits == "+" {
		return Rational{}, services.Wrap(services.ErrConversion, "geo", "parse rational",
			fmt.Sprintf("invalid value %q", text), nil)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Rational{}, services.Wrap(services.ErrConversion, "geo", "parse rational",
			fmt.Sprintf("invalid value %q", text), err)
	}
	den := int64(1)
	for range len(frac) {
		den *= 10
	}
	return Rational{Num: n, Den: den}, nil
}

// ParseDMS parses whitespace or comma separated rationals, e.g. "22/1 39/1 14/1".
func ParseDMS(text string) ([]Rational, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '[' || r == ']'
	})
	out := make([]Rational, 0, len(fields))
	for _, field := range fields {
		r, err := ParseRational(field)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FormatDMS renders the raw components with their reference, e.g. `22° 39' 14" N`.
func FormatDMS(components []Rational, ref string) string {
	marks := [3]string{"°", "'", "\""}
	parts := make([]string, 0, len(components)+1)
	for i, c := range components {
		if i >= len(marks) {
			break
		}
		var text string
		switch {
		case c.Den == 0:
			text = c.String()
		case c.Num%c.Den == 0:
			text = strconv.FormatInt(c.Num/c.Den, 10)
		default:
			text = strconv.FormatFloat(c.Float(), 'f', -1, 64)
		}
		parts = append(parts, text+marks[i])
	}
	if ref = strings.ToUpper(strings.TrimSpace(ref)); ref != "" {
		parts = append(parts, ref)
	}
	return strings.Join(parts, " ")
}

// ValidateCoordinates rejects NaN and out-of-range latitude/longitude pairs.
func ValidateCoordinates(lat, lon float64) error {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lon):
		return services.Wrap(services.ErrConversion, "geo", "validate", "coordinate is NaN", nil)
	case lat < -90 || lat > 90:
		return services.Wrap(services.ErrConversion, "geo", "validate",
			fmt.Sprintf("latitude %v out of range", lat), nil)
	case lon < -180 || lon > 180:
		return services.Wrap(services.ErrConversion, "geo", "validate",
			fmt.Sprintf("longitude %v out of range", lon), nil)
	}
	return nil
}
