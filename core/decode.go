package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/shrek82/leasedb/dialect"
)

// Kind is the native kind a column decodes to.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "time"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type decodeFunc func(v any) (any, error)

type decoder struct {
	kind   Kind
	decode decodeFunc
}

var (
	boolDecoder   = decoder{KindBool, decodeBool}
	intDecoder    = decoder{KindInt, decodeInt}
	floatDecoder  = decoder{KindFloat, decodeFloat}
	stringDecoder = decoder{KindString, decodeString}
	timeDecoder   = decoder{KindTime, decodeTime}
	nullDecoder   = decoder{KindNull, func(any) (any, error) { return nil, nil }}
)

// decoders is the decoding table. Type codes missing here use stringDecoder.
var decoders = map[dialect.TypeCode]decoder{
	dialect.TypeBit:     boolDecoder,
	dialect.TypeBoolean: boolDecoder,

	dialect.TypeTinyInt:  intDecoder,
	dialect.TypeSmallInt: intDecoder,
	dialect.TypeInteger:  intDecoder,
	dialect.TypeBigInt:   intDecoder,

	dialect.TypeReal:    floatDecoder,
	dialect.TypeFloat:   floatDecoder,
	dialect.TypeDouble:  floatDecoder,
	dialect.TypeDecimal: floatDecoder,
	dialect.TypeNumeric: floatDecoder,

	dialect.TypeBinary:        stringDecoder,
	dialect.TypeVarBinary:     stringDecoder,
	dialect.TypeLongVarBinary: stringDecoder,
	dialect.TypeChar:          stringDecoder,
	dialect.TypeVarChar:       stringDecoder,
	dialect.TypeLongVarChar:   stringDecoder,
	dialect.TypeClob:          stringDecoder,
	dialect.TypeOther:         stringDecoder,

	dialect.TypeDate:      timeDecoder,
	dialect.TypeTime:      timeDecoder,
	dialect.TypeTimestamp: timeDecoder,

	dialect.TypeNull: nullDecoder,
}

func decoderFor(code dialect.TypeCode) decoder {
	if d, ok := decoders[code]; ok {
		return d
	}
	return stringDecoder
}

// KindOf returns the kind values of a column with the given type code decode to.
func KindOf(code dialect.TypeCode) Kind {
	return decoderFor(code).kind
}

// A SQL NULL decodes to nil whatever the column type; the decoders below
// only see non-nil driver values.

func decodeBool(v any) (any, error) {
	if b, ok := v.([]byte); ok {
		// BIT(1) arrives as a single raw byte
		if len(b) == 1 && b[0] <= 1 {
			return b[0] == 1, nil
		}
		v = string(b)
	}
	return cast.ToBoolE(v)
}

// textOf reports the trimmed text of a string or []byte driver value.
func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case []byte:
		return strings.TrimSpace(string(x)), true
	case string:
		return strings.TrimSpace(x), true
	}
	return "", false
}

// decodeInt reads text as base 10 so ZEROFILL values keep their value.
func decodeInt(v any) (any, error) {
	s, ok := textOf(v)
	if !ok {
		return cast.ToInt64E(v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	// "12.0" from drivers that render integral numerics with a scale
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != float64(int64(f)) {
		return nil, err
	}
	return int64(f), nil
}

func decodeFloat(v any) (any, error) {
	s, ok := textOf(v)
	if !ok {
		return cast.ToFloat64E(v)
	}
	return strconv.ParseFloat(s, 64)
}

func decodeString(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	}
	return cast.ToStringE(v)
}

// decodeTime places a bare time of day on the epoch date.
func decodeTime(v any) (any, error) {
	s, ok := textOf(v)
	if !ok {
		return cast.ToTimeE(v)
	}
	if t, ok := parseClock(s); ok {
		return t, nil
	}
	return cast.ToTimeE(s)
}

// parseClock accepts [-]H+:MM:SS[.fraction] and returns it as an offset from
// the epoch. MySQL TIME values range past a day and may be negative.
func parseClock(s string) (time.Time, bool) {
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) != 3 || len(parts[1]) != 2 || len(parts[2]) < 2 {
		return time.Time{}, false
	}
	h, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || m > 59 {
		return time.Time{}, false
	}
	sec, frac, _ := strings.Cut(parts[2], ".")
	ss, err := strconv.ParseUint(sec, 10, 8)
	if err != nil || len(sec) != 2 || ss > 59 {
		return time.Time{}, false
	}
	var ns uint64
	if frac != "" {
		if len(frac) > 9 {
			return time.Time{}, false
		}
		if ns, err = strconv.ParseUint(frac, 10, 32); err != nil {
			return time.Time{}, false
		}
		ns *= uint64(pow10(9 - len(frac)))
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(ss)*time.Second + time.Duration(ns)
	if neg {
		d = -d
	}
	return time.Unix(0, 0).UTC().Add(d), true
}

func pow10(n int) int64 {
	p := int64(1)
	for ; n > 0; n-- {
		p *= 10
	}
	return p
}

func decodeValue(d decoder, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return d.decode(v)
}
