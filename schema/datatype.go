// Package schema describes which columns are requested for each datatype,
// and how decoded event columns are produced.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDatatype = errors.New("unknown datatype")

// Datatype is one category of on-chain entity that can be frozen into a table
type Datatype string

const (
	Logs Datatype = "logs"
)

var datatypeAliases = map[string]Datatype{
	"logs":   Logs,
	"log":    Logs,
	"events": Logs,
}

func ParseDatatype(s string) (Datatype, error) {
	dt, ok := datatypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDatatype, s)
	}
	return dt, nil
}

func (d Datatype) String() string {
	return string(d)
}

// ColumnType is the semantic type of an output column
type ColumnType int

const (
	UInt32 ColumnType = iota
	UInt64
	Int64
	Binary
	String
	Boolean
	Decimal // big integers, rendered as base-10 strings
)

func (t ColumnType) String() string {
	switch t {
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Int64:
		return "int64"
	case Binary:
		return "binary"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Decimal:
		return "decimal"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}
