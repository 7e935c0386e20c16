package client

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/satishbabariya/aql-go/query/loader"
)

// ScanInto maps query results into structs. Tuple results are matched to fields by the
// return aliases of the query; an *loader.Entity result is matched by property name,
// with its identifier going to the field named or tagged "id". Fields match by db tag,
// then name, then case-insensitive name. Unmatched values are ignored.
func ScanInto[T any](results []any, aliases []string) ([]T, error) {
	out := make([]T, 0, len(results))
	for i, r := range results {
		var result T
		val := reflect.ValueOf(&result).Elem()
		if val.Kind() != reflect.Struct {
			return nil, fmt.Errorf("ScanInto needs a struct type, got %s", val.Type())
		}

		var err error
		switch v := r.(type) {
		case *loader.Entity:
			err = scanEntity(val, v)
		case []any:
			err = scanTuple(val, v, aliases)
		default:
			err = scanTuple(val, []any{v}, aliases)
		}
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		out = append(out, result)
	}
	return out, nil
}

func scanEntity(val reflect.Value, e *loader.Entity) error {
	if err := assign(val, "id", e.ID); err != nil {
		return err
	}
	for name, v := range e.Values {
		if err := assign(val, name, v); err != nil {
			return err
		}
	}
	for name, members := range e.Collections {
		if err := assign(val, name, members); err != nil {
			return err
		}
	}
	return nil
}

func scanTuple(val reflect.Value, tuple []any, aliases []string) error {
	if len(tuple) != len(aliases) {
		return fmt.Errorf("%d values for %d aliases", len(tuple), len(aliases))
	}
	for i, alias := range aliases {
		if err := assign(val, alias, tuple[i]); err != nil {
			return err
		}
	}
	return nil
}

// assign sets the field matching name to v, converting between compatible types.
func assign(val reflect.Value, name string, v any) error {
	field, ok := findFieldByName(val.Type(), name)
	if !ok || v == nil {
		return nil
	}
	target := val.FieldByIndex(field.Index)
	if !target.CanSet() {
		return nil
	}

	if b, isBytes := v.([]byte); isBytes && target.Kind() == reflect.String {
		v = string(b)
	}
	src := reflect.ValueOf(v)
	switch {
	case src.Type().AssignableTo(target.Type()):
		target.Set(src)
	case target.Kind() == reflect.Pointer && src.Type().ConvertibleTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(src.Convert(target.Type().Elem()))
		target.Set(p)
	case src.Type().ConvertibleTo(target.Type()) && convertible(src.Kind(), target.Kind()):
		target.Set(src.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to field %s (%s)", v, field.Name, target.Type())
	}
	return nil
}

// convertible rejects the numeric to string conversions reflect allows.
func convertible(from, to reflect.Kind) bool {
	if to == reflect.String {
		return from == reflect.String
	}
	return true
}

// findFieldByName finds a struct field by db tag or field name
func findFieldByName(typ reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		dbTag := field.Tag.Get("db")
		if dbTag != "" {
			if strings.Split(dbTag, ",")[0] == name {
				return field, true
			}
		}
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == name {
			return field, true
		}
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if strings.EqualFold(field.Name, name) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}
