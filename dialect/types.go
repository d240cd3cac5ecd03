package dialect

import (
	"strings"
	"sync"
)

// TypeCode classifies a column's declared SQL type. The set mirrors the
// java.sql.Types constants that database cursors traditionally report.
type TypeCode int

const (
	TypeOther TypeCode = iota
	TypeBit
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeReal
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeNumeric
	TypeChar
	TypeVarChar
	TypeLongVarChar
	TypeClob
	TypeBinary
	TypeVarBinary
	TypeLongVarBinary
	TypeDate
	TypeTime
	TypeTimestamp
	TypeNull
	// Types below have no decode rule of their own and fall through to the
	// string catch-all.
	TypeArray
	TypeStruct
	TypeJSON
)

var typeCodeNames = map[TypeCode]string{
	TypeOther:         "OTHER",
	TypeBit:           "BIT",
	TypeBoolean:       "BOOLEAN",
	TypeTinyInt:       "TINYINT",
	TypeSmallInt:      "SMALLINT",
	TypeInteger:       "INTEGER",
	TypeBigInt:        "BIGINT",
	TypeReal:          "REAL",
	TypeFloat:         "FLOAT",
	TypeDouble:        "DOUBLE",
	TypeDecimal:       "DECIMAL",
	TypeNumeric:       "NUMERIC",
	TypeChar:          "CHAR",
	TypeVarChar:       "VARCHAR",
	TypeLongVarChar:   "LONGVARCHAR",
	TypeClob:          "CLOB",
	TypeBinary:        "BINARY",
	TypeVarBinary:     "VARBINARY",
	TypeLongVarBinary: "LONGVARBINARY",
	TypeDate:          "DATE",
	TypeTime:          "TIME",
	TypeTimestamp:     "TIMESTAMP",
	TypeNull:          "NULL",
	TypeArray:         "ARRAY",
	TypeStruct:        "STRUCT",
	TypeJSON:          "JSON",
}

func (c TypeCode) String() string {
	if s, ok := typeCodeNames[c]; ok {
		return s
	}
	return "OTHER"
}

// typeNames maps the database type names reported by the bundled drivers
// (sql.ColumnType.DatabaseTypeName) to type codes. Keys are upper case with
// any "(n)" / "(p,s)" suffix removed.
var typeNames = map[string]TypeCode{
	// boolean
	"BIT":     TypeBit,
	"BOOL":    TypeBoolean,
	"BOOLEAN": TypeBoolean,

	// integers
	"TINYINT":   TypeTinyInt,
	"INT1":      TypeTinyInt,
	"SMALLINT":  TypeSmallInt,
	"INT2":      TypeSmallInt,
	"YEAR":      TypeSmallInt,
	"MEDIUMINT": TypeInteger,
	"INT":       TypeInteger,
	"INT4":      TypeInteger,
	"INTEGER":   TypeInteger,
	"SERIAL":    TypeInteger,
	"BIGINT":    TypeBigInt,
	"INT8":      TypeBigInt,
	"BIGSERIAL": TypeBigInt,

	// floating point and exact numerics
	"REAL":             TypeReal,
	"FLOAT4":           TypeReal,
	"FLOAT":            TypeFloat,
	"DOUBLE":           TypeDouble,
	"DOUBLE PRECISION": TypeDouble,
	"FLOAT8":           TypeDouble,
	"DECIMAL":          TypeDecimal,
	"DEC":              TypeDecimal,
	"MONEY":            TypeDecimal,
	"NUMERIC":          TypeNumeric,
	"NUMBER":           TypeNumeric,

	// character data
	"CHAR":              TypeChar,
	"CHARACTER":         TypeChar,
	"BPCHAR":            TypeChar,
	"NCHAR":             TypeChar,
	"VARCHAR":           TypeVarChar,
	"CHARACTER VARYING": TypeVarChar,
	"NVARCHAR":          TypeVarChar,
	"VARCHAR2":          TypeVarChar,
	"NVARCHAR2":         TypeVarChar,
	"TEXT":              TypeLongVarChar,
	"TINYTEXT":          TypeLongVarChar,
	"MEDIUMTEXT":        TypeLongVarChar,
	"LONGTEXT":          TypeLongVarChar,
	"NTEXT":             TypeLongVarChar,
	"CLOB":              TypeClob,
	"NCLOB":             TypeClob,

	// binary data
	"BINARY":     TypeBinary,
	"VARBINARY":  TypeVarBinary,
	"BYTEA":      TypeLongVarBinary,
	"BLOB":       TypeLongVarBinary,
	"TINYBLOB":   TypeLongVarBinary,
	"MEDIUMBLOB": TypeLongVarBinary,
	"LONGBLOB":   TypeLongVarBinary,
	"IMAGE":      TypeLongVarBinary,
	"RAW":        TypeVarBinary,

	// temporal
	"DATE":        TypeDate,
	"TIME":        TypeTime,
	"TIMETZ":      TypeTime,
	"DATETIME":    TypeTimestamp,
	"DATETIME2":   TypeTimestamp,
	"TIMESTAMP":   TypeTimestamp,
	"TIMESTAMPTZ": TypeTimestamp,

	"NULL": TypeNull,

	"JSON":  TypeJSON,
	"JSONB": TypeJSON,
}

var typeNamesMu sync.RWMutex

// RegisterTypeName adds or overrides the code for a database type name.
func RegisterTypeName(name string, code TypeCode) {
	typeNamesMu.Lock()
	defer typeNamesMu.Unlock()
	typeNames[NormalizeTypeName(name)] = code
}

// TypeCodeOf resolves a declared database type name. Unrecognized names
// resolve to TypeOther.
func TypeCodeOf(name string) TypeCode {
	n := NormalizeTypeName(name)
	typeNamesMu.RLock()
	defer typeNamesMu.RUnlock()
	if c, ok := typeNames[n]; ok {
		return c
	}
	if strings.HasPrefix(n, "_") {
		return TypeArray
	}
	return TypeOther
}

// NormalizeTypeName upper-cases name and strips length/precision suffixes,
// UNSIGNED/ZEROFILL markers and time zone qualifiers.
func NormalizeTypeName(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(n[i:], ')'); j >= 0 {
			rest = n[i+j+1:]
		}
		n = strings.TrimSpace(n[:i]) + rest
	}
	for _, marker := range []string{"UNSIGNED", "ZEROFILL", "WITH TIME ZONE", "WITHOUT TIME ZONE", "WITH LOCAL TIME ZONE"} {
		n = strings.ReplaceAll(n, marker, "")
	}
	return strings.Join(strings.Fields(n), " ")
}
