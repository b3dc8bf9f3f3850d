package geocode

import (
	"maps"
	"strings"

	"floravision/internal/geo"
	"floravision/internal/photo"
)

// Unavailable is the formatted address for an empty component set.
const Unavailable = "地址信息不可用"

const (
	separator    = "，"
	localCountry = "中国"
)

// Source records where an address came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Address is the outcome of a resolution.
type Address struct {
	Components map[string]string `json:"components"`
	Formatted  string            `json:"formatted"`
	Province   string            `json:"province,omitempty"`
	City       string            `json:"city,omitempty"`
	District   string            `json:"district,omitempty"`
	Source     Source            `json:"source"`
}

// Apply copies the address onto a location, marking it resolved. The
// component map is never nil afterwards, even for an unknown region.
func (a Address) Apply(loc *photo.Location) {
	if loc == nil {
		return
	}
	components := maps.Clone(a.Components)
	if components == nil {
		components = map[string]string{}
	}
	loc.AddressInfo = components
	loc.AddressSource = string(a.Source)
	loc.FormattedAddress = a.Formatted
	loc.Province = a.Province
	loc.City = a.City
	loc.District = a.District
}

func first(components map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(components[key]); v != "" {
			return v
		}
	}
	return ""
}

// FormatAddress joins country, province, city, district, town, road, and
// house number, skipping empty and repeated parts. The house number is only
// used together with a road.
func FormatAddress(components map[string]string) string {
	if len(components) == 0 {
		return Unavailable
	}
	city := first(components, "city", "district")
	district := ""
	if components["city"] != "" {
		district = first(components, "district", "city_district")
	}
	road := first(components, "road", "street")

	candidates := []string{
		first(components, "country"),
		first(components, "state", "province"),
		city,
		district,
		first(components, "town", "county"),
		road,
	}
	if road != "" {
		candidates = append(candidates, first(components, "house_number"))
	}

	parts := make([]string, 0, len(candidates))
	for _, part := range candidates {
		if part == "" {
			continue
		}
		if n := len(parts); n > 0 && parts[n-1] == part {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return Unavailable
	}
	return strings.Join(parts, separator)
}

// LocalComponents synthesizes address components from a matched region.
// Unknown levels are omitted; an unmatched region yields an empty map.
func LocalComponents(region geo.Region) map[string]string {
	components := map[string]string{}
	if !region.Known() {
		return components
	}
	components["country"] = localCountry
	if region.Province != "" && region.Province != geo.UnknownProvince {
		components["state"] = region.Province
	}
	components["city"] = region.City
	if region.HasDistrict() {
		components["district"] = region.District
	}
	return components
}

func localAddress(region geo.Region) Address {
	components := LocalComponents(region)
	return Address{
		Components: components,
		Formatted:  FormatAddress(components),
		Province:   region.Province,
		City:       region.City,
		District:   region.District,
		Source:     SourceLocal,
	}
}

func remoteAddress(components map[string]string) Address {
	city := first(components, "city", "district", "town")
	district := first(components, "district", "city_district", "county", "suburb")
	if district == city {
		district = first(components, "town", "suburb")
		if district == city {
			district = ""
		}
	}
	return Address{
		Components: maps.Clone(components),
		Formatted:  FormatAddress(components),
		Province:   first(components, "state", "province"),
		City:       city,
		District:   district,
		Source:     SourceRemote,
	}
}
