package album

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"floravision/internal/geo"
	"floravision/internal/photo"
	"floravision/internal/services"
)

// Mode selects the grouping key.
type Mode string

const (
	ModeFlower   Mode = "flower"
	ModeLocation Mode = "location"
)

const (
	// UnknownLocation groups records whose position is missing or unresolved.
	UnknownLocation = "未知位置"
	// Unrecognized groups records without any detection.
	Unrecognized = "未识别"
)

// ParseMode accepts "flower" or "location" (case-insensitive).
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeFlower, "":
		return ModeFlower, nil
	case ModeLocation:
		return ModeLocation, nil
	}
	return "", services.Wrap(services.ErrInvalidArgument, "album", "parse mode",
		fmt.Sprintf("unknown grouping %q (want flower or location)", value), nil)
}

// Entry is one image inside a group.
type Entry struct {
	Path       string  `json:"path"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location"`
}

// Group is a named set of images.
type Group struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Classify groups records by mode. Groups are ordered by size, then name;
// entries keep path order. Records still waiting for an address are left out
// of location groupings.
func Classify(records []*photo.Record, mode Mode) []Group {
	byName := make(map[string][]Entry)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		entry := entryFor(rec)
		key := entry.Label
		if mode == ModeLocation {
			if rec.Location.Pending() {
				continue
			}
			key = entry.Location
		}
		byName[key] = append(byName[key], entry)
	}

	groups := make([]Group, 0, len(byName))
	for name, entries := range byName {
		slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Path, b.Path) })
		groups = append(groups, Group{Name: name, Entries: entries})
	}
	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(len(b.Entries), len(a.Entries)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return groups
}

func entryFor(rec *photo.Record) Entry {
	entry := Entry{Path: rec.Path, Label: Unrecognized, Location: LocationName(rec.Location)}
	if top, ok := rec.TopDetection(); ok {
		entry.Label = top.Label
		entry.Confidence = top.Confidence
	}
	return entry
}

// LocationName renders the province/city key for a location.
func LocationName(loc *photo.Location) string {
	if !loc.Resolved() {
		return UnknownLocation
	}
	var parts []string
	if loc.Province != "" && loc.Province != geo.UnknownProvince {
		parts = append(parts, loc.Province)
	}
	if loc.City != "" && loc.City != geo.UnknownCity && loc.City != loc.Province {
		parts = append(parts, loc.City)
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, " ")
}
