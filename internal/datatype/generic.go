package datatype

import "strings"

// Generic is a datatype of any name. It never carries a length and its base
// type is inferred from the name.
type Generic struct {
	typ      string
	nullable bool
}

var _ Definition = (*Generic)(nil)

// NewGeneric accepts any type name.
func NewGeneric(typ string, opts Options) *Generic {
	return &Generic{typ: typ, nullable: opts.Nullable}
}

func (g *Generic) Type() string           { return g.typ }
func (g *Generic) Nullable() bool         { return g.nullable }
func (g *Generic) Length() string         { return "" }
func (g *Generic) ToMetadata() []Metadata { return toMetadata(g) }

// Basetype guesses the base type from substrings of the type name.
func (g *Generic) Basetype() string {
	t := strings.ToLower(g.typ)
	switch {
	case strings.Contains(t, "interval"):
		return BaseString
	case strings.Contains(t, "int"):
		return BaseInteger
	case strings.Contains(t, "float"), strings.Contains(t, "double"), strings.Contains(t, "real"):
		return BaseFloat
	case strings.Contains(t, "bool"), t == "bit":
		return BaseBoolean
	case strings.Contains(t, "dec"), strings.Contains(t, "numeric"), strings.Contains(t, "number"), strings.Contains(t, "money"):
		return BaseNumeric
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return BaseTimestamp
	case strings.Contains(t, "date"):
		return BaseDate
	default:
		return BaseString
	}
}
