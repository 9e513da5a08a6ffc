package domain

// Category is the venue's option family.
type Category string

const (
	CategoryBinary Category = "binary"
	CategoryTurbo  Category = "turbo"
)

// OpenInstruments is the venue catalog: category → instrument id → open.
type OpenInstruments map[Category]map[string]bool

// IsOpen reports whether instrument id is currently tradable in category.
func (o OpenInstruments) IsOpen(category Category, id string) bool {
	instruments, ok := o[category]
	if !ok {
		return false
	}
	return instruments[id]
}

// Count returns how many instruments are open across every category.
func (o OpenInstruments) Count() int {
	n := 0
	for _, instruments := range o {
		for _, open := range instruments {
			if open {
				n++
			}
		}
	}
	return n
}

// AssetBinding ties a configured asset to a concrete instrument on the venue.
type AssetBinding struct {
	Asset      string
	Instrument string
	Category   Category
	Open       bool
	Mapped     bool // resolved through a fixed mapping, alternates are never searched
}
