// Package validator checks struct fields against named rules.
package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ValidationErrors is a map of field names to their validation errors.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		for _, err := range v[field] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s: %v", field, err)
		}
	}
	return sb.String()
}

// Rule is the interface for a single validation rule.
type Rule interface {
	Validate(value any) error
	Msg(msg string) Rule
	Optional() Rule
}

// BaseRule provides the message and optional handling shared by all rules.
type BaseRule struct {
	msg      string
	optional bool
}

// ShouldValidate reports false for zero values of optional rules.
func (r *BaseRule) ShouldValidate(value any) bool {
	return !r.optional || !isZeroValue(value)
}

// FormatError returns the custom message if set, otherwise defaultErr.
func (r *BaseRule) FormatError(defaultErr error) error {
	if r.msg != "" {
		return fmt.Errorf("%s", r.msg)
	}
	return defaultErr
}

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// Rules maps struct field names to the rules they must pass. Nested fields
// are addressed with dots, as in "Pool.MaxOpenConns".
type Rules map[string][]Rule

// Validate checks value, a struct or pointer to struct, and returns
// ValidationErrors naming every failing field.
func (r Rules) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("validator: value must be a struct or pointer to struct")
	}

	errs := make(ValidationErrors)
	for name, rules := range r {
		field, ok := lookup(rv, name)
		if !ok {
			errs[name] = append(errs[name], fmt.Errorf("no such field"))
			continue
		}
		val := field.Interface()
		for _, rule := range rules {
			if err := rule.Validate(val); err != nil {
				errs[name] = append(errs[name], err)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func lookup(rv reflect.Value, path string) (reflect.Value, bool) {
	for _, part := range strings.Split(path, ".") {
		if rv.Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
		rv = rv.FieldByName(part)
		if !rv.IsValid() {
			return reflect.Value{}, false
		}
	}
	return rv, true
}
