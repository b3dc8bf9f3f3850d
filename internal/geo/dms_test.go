package geo_test

import (
	"errors"
	"math"
	"testing"

	"floravision/internal/geo"
	"floravision/internal/services"
)

func rats(values ...int64) []geo.Rational {
	out := make([]geo.Rational, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		out = append(out, geo.Rational{Num: values[i], Den: values[i+1]})
	}
	return out
}

func TestConvertDMS(t *testing.T) {
	tests := []struct {
		name       string
		components []geo.Rational
		ref        string
		want       float64
	}{
		{"north", rats(22, 1, 39, 1, 14, 1), "N", 22.653889},
		{"south lowercase", rats(22, 1, 39, 1, 14, 1), " s ", -22.653889},
		{"west", rats(113, 1, 49, 1, 426, 100), "W", -113.817850},
		{"east fractional seconds", rats(113, 1, 49, 1, 4263, 1000), "E", 113.818}, // 113 + 49/60 + 4.263/3600
		{"degrees only", rats(10, 1), "N", 10},
		{"zero", rats(0, 1, 0, 1, 0, 1), "N", 0},
		{"fractional degrees", rats(45, 2), "", 22.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := geo.ConvertDMS(tc.components, tc.ref)
			if err != nil {
				t.Fatalf("ConvertDMS: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-3 {
				t.Fatalf("got %f want %f", got, tc.want)
			}
		})
	}
}

func TestConvertDMSPrecision(t *testing.T) {
	got, err := geo.ConvertDMS(rats(22, 1, 39, 1, 14, 1), "N")
	if err != nil {
		t.Fatalf("ConvertDMS: %v", err)
	}
	if math.Abs(got-22.653889) > 1e-6 {
		t.Fatalf("got %.7f", got)
	}
}

func TestConvertDMSIdentity(t *testing.T) {
	for _, d := range []int64{0, 1, 45, 89, 179} {
		for _, m := range []int64{0, 15, 59} {
			for _, s := range []int64{0, 30, 59} {
				got, err := geo.ConvertDMS(rats(d, 1, m, 1, s, 1), "E")
				if err != nil {
					t.Fatalf("ConvertDMS: %v", err)
				}
				want := float64(d) + float64(m)/60 + float64(s)/3600
				if math.Abs(got-want) > 1e-9 {
					t.Fatalf("%d %d %d: got %f want %f", d, m, s, got, want)
				}
				neg, _ := geo.ConvertDMS(rats(d, 1, m, 1, s, 1), "W")
				if neg != -got {
					t.Fatalf("expected sign flip for W, got %f vs %f", neg, got)
				}
			}
		}
	}
}

func TestConvertDMSErrors(t *testing.T) {
	if _, err := geo.ConvertDMS(rats(22, 1, 39, 0, 14, 1), "N"); !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion error for zero denominator, got %v", err)
	}
	if _, err := geo.ConvertDMS(nil, "N"); !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion error for empty components, got %v", err)
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"22/1", 22},
		{" 4263/1000 ", 4.263},
		{"14", 14},
		{"14.25", 14.25},
		{".5", 0.5},
	}
	for _, tc := range tests {
		r, err := geo.ParseRational(tc.in)
		if err != nil {
			t.Fatalf("ParseRational(%q): %v", tc.in, err)
		}
		if math.Abs(r.Float()-tc.want) > 1e-9 {
			t.Fatalf("ParseRational(%q) = %v, want %v", tc.in, r.Float(), tc.want)
		}
	}
	for _, bad := range []string{"", "abc", "1/x", "x/1", "1.2.3", "."} {
		if _, err := geo.ParseRational(bad); !errors.Is(err, services.ErrConversion) {
			t.Fatalf("ParseRational(%q): expected conversion error, got %v", bad, err)
		}
	}
}

func TestParseDMSAndFormat(t *testing.T) {
	comps, err := geo.ParseDMS("[22/1, 39/1, 14/1]")
	if err != nil {
		t.Fatalf("ParseDMS: %v", err)
	}
	if len(comps) != 3 {
		t.Fatalf("expected 3 components, got %d", len(comps))
	}
	if got := geo.FormatDMS(comps, "n"); got != `22° 39' 14" N` {
		t.Fatalf("FormatDMS = %q", got)
	}
	if got := geo.FormatDMS(rats(113, 1, 4263, 1000), "E"); got != `113° 4.263' E` {
		t.Fatalf("FormatDMS = %q", got)
	}
}

func TestValidateCoordinates(t *testing.T) {
	if err := geo.ValidateCoordinates(22.5, 113.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, pair := range [][2]float64{{math.NaN(), 0}, {91, 0}, {0, -181}} {
		if err := geo.ValidateCoordinates(pair[0], pair[1]); !errors.Is(err, services.ErrConversion) {
			t.Fatalf("expected conversion error for %v, got %v", pair, err)
		}
	}
}
