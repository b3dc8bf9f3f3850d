package geo

import "sync"

const (
	UnknownProvince = "未知省份"
	UnknownCity     = "未知城市"
	UnknownDistrict = "未知区"
)

// BBox is an inclusive latitude/longitude rectangle.
type BBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	return b.LatMin <= lat && lat <= b.LatMax && b.LonMin <= lon && lon <= b.LonMax
}

// District is the finest level of the hierarchy.
type District struct {
	Name string `json:"name"`
	BBox BBox   `json:"bbox"`
}

// City carries its own rectangle plus an ordered list of districts. District
// rectangles are not required to nest inside the city rectangle.
type City struct {
	Name      string     `json:"name"`
	BBox      BBox       `json:"bbox"`
	Districts []District `json:"districts,omitempty"`
}

// Province groups cities in scan order.
type Province struct {
	Name   string `json:"name"`
	Cities []City `json:"cities"`
}

// Region is the result of a hierarchy lookup.
type Region struct {
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
}

// UnknownRegion is returned when no city contains the point.
func UnknownRegion() Region {
	return Region{Province: UnknownProvince, City: UnknownCity, District: UnknownDistrict}
}

// Known reports whether a city matched.
func (r Region) Known() bool {
	return r.City != "" && r.City != UnknownCity
}

// HasDistrict reports whether a district matched.
func (r Region) HasDistrict() bool {
	return r.District != "" && r.District != UnknownDistrict
}

// Matcher resolves coordinates against an ordered hierarchy. The first city
// whose rectangle contains the point wins, then its districts are scanned the
// same way.
type Matcher struct {
	provinces []Province
}

// NewMatcher copies the provided hierarchy so later caller mutation has no effect.
func NewMatcher(provinces []Province) *Matcher {
	return &Matcher{provinces: cloneProvinces(provinces)}
}

var defaultMatcher = sync.OnceValue(func() *Matcher {
	return &Matcher{provinces: southChinaRegions()}
})

// DefaultMatcher returns the shared Guangdong/Guangxi matcher.
func DefaultMatcher() *Matcher {
	return defaultMatcher()
}

// Match never fails; points outside every city yield UnknownRegion.
func (m *Matcher) Match(lat, lon float64) Region {
	if m == nil {
		return UnknownRegion()
	}
	for _, province := range m.provinces {
		for _, city := range province.Cities {
			if !city.BBox.Contains(lat, lon) {
				continue
			}
			region := Region{Province: province.Name, City: city.Name, District: UnknownDistrict}
			for _, district := range city.Districts {
				if district.BBox.Contains(lat, lon) {
					region.District = district.Name
					break
				}
			}
			return region
		}
	}
	return UnknownRegion()
}

// Provinces returns a copy of the hierarchy in scan order.
func (m *Matcher) Provinces() []Province {
	if m == nil {
		return nil
	}
	return cloneProvinces(m.provinces)
}

func cloneProvinces(in []Province) []Province {
	out := make([]Province, len(in))
	for i, p := range in {
		cities := make([]City, len(p.Cities))
		for j, c := range p.Cities {
			cities[j] = c
			cities[j].Districts = append([]District(nil), c.Districts...)
		}
		out[i] = Province{Name: p.Name, Cities: cities}
	}
	return out
}
