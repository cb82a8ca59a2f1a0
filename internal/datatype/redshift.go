package datatype

import (
	"strconv"
	"strings"

	"sqltransform/internal/catalog"
)

type redshiftType struct {
	base   string
	length lengthKind
	max    int64 // upper bound for character lengths
}

type lengthKind int

const (
	noLength lengthKind = iota
	charLength
	numericLength
)

const (
	maxNumericPrecision = 38
	maxNumericScale     = 37
)

// redshiftTypes lists the type names the Redshift model accepts, upper-cased.
var redshiftTypes = map[string]redshiftType{
	"SMALLINT": {base: BaseInteger},
	"INT2":     {base: BaseInteger},
	"INTEGER":  {base: BaseInteger},
	"INT":      {base: BaseInteger},
	"INT4":     {base: BaseInteger},
	"BIGINT":   {base: BaseInteger},
	"INT8":     {base: BaseInteger},

	"DECIMAL": {base: BaseNumeric, length: numericLength},
	"NUMERIC": {base: BaseNumeric, length: numericLength},

	"REAL":             {base: BaseFloat},
	"FLOAT4":           {base: BaseFloat},
	"DOUBLE PRECISION": {base: BaseFloat},
	"FLOAT8":           {base: BaseFloat},
	"FLOAT":            {base: BaseFloat},

	"BOOLEAN": {base: BaseBoolean},
	"BOOL":    {base: BaseBoolean},

	"CHAR":              {base: BaseString, length: charLength, max: 4096},
	"CHARACTER":         {base: BaseString, length: charLength, max: 4096},
	"NCHAR":             {base: BaseString, length: charLength, max: 4096},
	"BPCHAR":            {base: BaseString, length: charLength, max: 4096},
	"VARCHAR":           {base: BaseString, length: charLength, max: 65535},
	"CHARACTER VARYING": {base: BaseString, length: charLength, max: 65535},
	"NVARCHAR":          {base: BaseString, length: charLength, max: 65535},
	"TEXT":              {base: BaseString, length: charLength, max: 65535},
	"VARBYTE":           {base: BaseString, length: charLength, max: 1024000},

	"DATE": {base: BaseDate},

	"TIMESTAMP":                   {base: BaseTimestamp},
	"TIMESTAMP WITHOUT TIME ZONE": {base: BaseTimestamp},
	"TIMESTAMPTZ":                 {base: BaseTimestamp},
	"TIMESTAMP WITH TIME ZONE":    {base: BaseTimestamp},

	"TIME":                   {base: BaseString},
	"TIME WITHOUT TIME ZONE": {base: BaseString},
	"TIMETZ":                 {base: BaseString},
	"TIME WITH TIME ZONE":    {base: BaseString},

	"SUPER":     {base: BaseString},
	"GEOMETRY":  {base: BaseString},
	"GEOGRAPHY": {base: BaseString},
	"HLLSKETCH": {base: BaseString},
}

// Redshift is a datatype of the Redshift model.
type Redshift struct {
	typ      string
	nullable bool
	length   string
	base     string
}

var _ Definition = (*Redshift)(nil)

// NewRedshift validates typ (case-insensitively) and derives the length from
// the catalog attributes: character types use the character maximum,
// DECIMAL/NUMERIC use "precision[,scale]", other types carry none. The type
// name is kept as given.
func NewRedshift(typ string, opts Options) (*Redshift, error) {
	rt, ok := redshiftTypes[strings.ToUpper(strings.TrimSpace(typ))]
	if !ok {
		return nil, &UnknownTypeError{Type: typ}
	}

	var length string
	switch rt.length {
	case charLength:
		if m := opts.Length.CharacterMaximum; m != nil {
			length = strconv.FormatInt(*m, 10)
			if *m < 1 || *m > rt.max {
				return nil, &InvalidLengthError{Type: typ, Length: length, Reason: "must be between 1 and " + strconv.FormatInt(rt.max, 10)}
			}
		}
	case numericLength:
		if p := opts.Length.NumericPrecision; p != nil {
			length = strconv.FormatInt(*p, 10)
			if s := opts.Length.NumericScale; s != nil {
				length += "," + strconv.FormatInt(*s, 10)
			}
			if err := validateNumeric(typ, length, opts.Length); err != nil {
				return nil, err
			}
		}
	}

	return &Redshift{typ: typ, nullable: opts.Nullable, length: length, base: rt.base}, nil
}

func validateNumeric(typ, length string, l catalog.Length) error {
	p := *l.NumericPrecision
	if p < 1 || p > maxNumericPrecision {
		return &InvalidLengthError{Type: typ, Length: length, Reason: "precision must be between 1 and 38"}
	}
	if l.NumericScale != nil {
		s := *l.NumericScale
		if s < 0 || s > maxNumericScale || s > p {
			return &InvalidLengthError{Type: typ, Length: length, Reason: "scale must be between 0 and min(precision, 37)"}
		}
	}
	return nil
}

func (r *Redshift) Type() string           { return r.typ }
func (r *Redshift) Nullable() bool         { return r.nullable }
func (r *Redshift) Length() string         { return r.length }
func (r *Redshift) Basetype() string       { return r.base }
func (r *Redshift) ToMetadata() []Metadata { return toMetadata(r) }
