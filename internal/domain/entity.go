package domain

import "time"

// Security identifies one tradable instrument. The entity key is an
// ISIN/RIC-style identifier and is immutable; a security may enter and
// leave the index universe over time.
type Security struct {
	Entity       string // ISIN or RIC
	Name         string
	SectorCode   string // TRBC economic sector
	IndustryCode string // TRBC industry group
}

// UniverseMembership marks that an entity was an index constituent at a
// month-end. Pairs are unique and never mutated after creation.
type UniverseMembership struct {
	Date   time.Time // canonical month-end
	Entity string
}
