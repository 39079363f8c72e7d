// SPDX-License-Identifier: MIT

package epg

import (
	"fmt"
	"strings"
)

// LCNField names one logical channel number candidate of a RawChannel.
type LCNField string

// LCN candidate fields. The string values match the provider table columns.
const (
	LCNTerrestrial1 LCNField = "chanlcnfta1"
	LCNTerrestrial2 LCNField = "chanlcnfta2"
	LCNTerrestrial3 LCNField = "chanlcnfta3"
	LCNSatellite    LCNField = "chanlcnfox"
	LCNPlatform     LCNField = "chanlcnfet"
)

var (
	// DefaultPrecedence is the resolution chain for providers without an override.
	DefaultPrecedence = []LCNField{LCNTerrestrial1, LCNSatellite, LCNPlatform}

	// DefaultFanOut lists the fields that yield additional provider entries
	// when they hold further distinct numbers.
	DefaultFanOut = []LCNField{LCNTerrestrial1, LCNTerrestrial2, LCNTerrestrial3, LCNSatellite}
)

// ParseLCNField validates a field name. The legacy alias "chanlcnfta4"
// maps to LCNTerrestrial1.
func ParseLCNField(s string) (LCNField, error) {
	switch f := LCNField(strings.ToLower(strings.TrimSpace(s))); f {
	case LCNTerrestrial1, LCNTerrestrial2, LCNTerrestrial3, LCNSatellite, LCNPlatform:
		return f, nil
	case "chanlcnfta4":
		return LCNTerrestrial1, nil
	default:
		return "", fmt.Errorf("unknown lcn field %q", s)
	}
}

// Value returns the raw candidate stored in field f.
func (c RawChannel) Value(f LCNField) (string, bool) {
	switch f {
	case LCNTerrestrial1:
		return c.LCNTerrestrial1, true
	case LCNTerrestrial2:
		return c.LCNTerrestrial2, true
	case LCNTerrestrial3:
		return c.LCNTerrestrial3, true
	case LCNSatellite:
		return c.LCNSatellite, true
	case LCNPlatform:
		return c.LCNPlatform, true
	}
	return "", false
}

// ValidNumber reports whether v is an acceptable channel number and
// returns it trimmed. Empty values and "0" are rejected.
func ValidNumber(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return "", false
	}
	return v, true
}

// ResolveNumber walks precedence and returns the first acceptable number
// together with the field it came from. On a miss it returns NotAvailable
// and ok=false.
func ResolveNumber(c RawChannel, precedence []LCNField) (number string, field LCNField, ok bool) {
	for _, f := range precedence {
		raw, known := c.Value(f)
		if !known {
			continue
		}
		if v, valid := ValidNumber(raw); valid {
			return v, f, true
		}
	}
	return NotAvailable, "", false
}

// precedence returns the resolution chain of p.
func (p Provider) precedence() []LCNField {
	if p.Precedence != "" {
		return []LCNField{p.Precedence}
	}
	return DefaultPrecedence
}

// fanOut returns the fields p fans out over. Providers with a precedence
// override resolve a single platform number and never fan out.
func (p Provider) fanOut() []LCNField {
	if p.Precedence != "" {
		return nil
	}
	if len(p.FanOut) > 0 {
		return p.FanOut
	}
	return DefaultFanOut
}
