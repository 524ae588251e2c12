// Package validate checks command payloads against declarative field rules.
//
// Rules are read from the `validate` struct tag:
//
//	required  the field must be present and hold a non-default value
//	nonzero   the field may be absent (nil pointer), but if supplied must be non-default
//
// Field names in the result come from the `json` tag so they line up with request bodies.
package validate

import (
	"reflect"
	"strings"
	"time"
)

// Errors maps a field name to a human-readable complaint. A nil map means valid.
type Errors map[string]string

var timeType = reflect.TypeOf(time.Time{})

// Struct runs every tagged rule on v, which must be a struct or a pointer to one.
func Struct(v any) Errors {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	var errs Errors
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		rules := parseRules(sf.Tag.Get("validate"))
		if len(rules) == 0 {
			continue
		}
		field := rv.Field(i)
		name := fieldName(sf)

		switch {
		case rules["required"]:
			if isEmpty(field) {
				errs = add(errs, name)
			}
		case rules["nonzero"]:
			if field.Kind() == reflect.Pointer && field.IsNil() {
				continue
			}
			if isEmpty(field) {
				errs = add(errs, name)
			}
		}
	}
	return errs
}

func add(errs Errors, name string) Errors {
	if errs == nil {
		errs = make(Errors)
	}
	errs[name] = name + " must not be empty"
	return errs
}

// isEmpty reports whether v holds its type's default value. Strings made only of
// whitespace count as empty; pointers are followed.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isEmpty(v.Elem())
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
		return v.IsZero()
	default:
		return v.IsZero()
	}
}

func parseRules(tag string) map[string]bool {
	if tag == "" {
		return nil
	}
	rules := make(map[string]bool)
	for _, part := range strings.Split(tag, ",") {
		if part = strings.TrimSpace(part); part != "" {
			rules[part] = true
		}
	}
	return rules
}

func fieldName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(sf.Name[:1]) + sf.Name[1:]
}
