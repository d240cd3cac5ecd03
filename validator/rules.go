package validator

import (
	"fmt"
	"reflect"
	"strings"
)

// --- Required ---

type requiredRule struct {
	BaseRule
}

func (r *requiredRule) Validate(v any) error {
	if isZeroValue(v) {
		return r.FormatError(fmt.Errorf("is required"))
	}
	return nil
}

func (r *requiredRule) Msg(msg string) Rule { nr := *r; nr.msg = msg; return &nr }
func (r *requiredRule) Optional() Rule      { return r }

var Required Rule = &requiredRule{}

// --- Range ---

type rangeRule struct {
	BaseRule
	min, max float64
}

func (r *rangeRule) Validate(v any) error {
	if !r.ShouldValidate(v) {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return r.FormatError(fmt.Errorf("must be a number"))
	}
	if f < r.min || f > r.max {
		return r.FormatError(fmt.Errorf("must be between %v and %v", r.min, r.max))
	}
	return nil
}

func (r *rangeRule) Msg(msg string) Rule { nr := *r; nr.msg = msg; return &nr }
func (r *rangeRule) Optional() Rule      { nr := *r; nr.optional = true; return &nr }

// Range accepts numbers, including time.Duration, within [min, max].
func Range(min, max float64) Rule {
	return &rangeRule{min: min, max: max}
}

// Min accepts numbers, including time.Duration, of at least min.
func Min(min float64) Rule {
	return &rangeRule{min: min, max: maxFloat}
}

const maxFloat = 1.7976931348623157e308

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// --- In ---

type inRule struct {
	BaseRule
	values []string
}

func (r *inRule) Validate(v any) error {
	if !r.ShouldValidate(v) {
		return nil
	}
	s := strings.ToLower(fmt.Sprint(v))
	for _, allowed := range r.values {
		if s == allowed {
			return nil
		}
	}
	return r.FormatError(fmt.Errorf("must be one of %s", strings.Join(r.values, ", ")))
}

func (r *inRule) Msg(msg string) Rule { nr := *r; nr.msg = msg; return &nr }
func (r *inRule) Optional() Rule      { nr := *r; nr.optional = true; return &nr }

// In accepts values whose lower-cased string form is one of values.
func In(values ...string) Rule {
	lower := make([]string, len(values))
	for i, v := range values {
		lower[i] = strings.ToLower(v)
	}
	return &inRule{values: lower}
}
