package export

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
)

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	plainKeyRe        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// checkSerializable walks v depth first, visiting map keys in sorted order,
// and reports the first unsupported value with a JSONPath-like location.
func checkSerializable(path string, v any) error {
	return walk(path, reflect.ValueOf(v), 0)
}

const maxDepth = 256

func walk(path string, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return &SerializationError{Path: path, Reason: "nesting too deep or cyclic"}
	}
	if !v.IsValid() {
		return nil
	}
	if v.Type().Implements(jsonMarshalerType) || v.Type().Implements(textMarshalerType) {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return walk(path, v.Elem(), depth+1)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &SerializationError{Path: path, Reason: fmt.Sprintf("unsupported float value %v", f)}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return &SerializationError{Path: path, Reason: fmt.Sprintf("unsupported map key type %s", v.Type().Key())}
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			if err := walk(childPath(path, k.String()), v.MapIndex(k), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(fmt.Sprintf("%s[%d]", path, i), v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walk(childPath(path, t.Field(i).Name), v.Field(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return &SerializationError{Path: path, Reason: fmt.Sprintf("unsupported type %s", v.Type())}
	}
}

func childPath(parent, key string) string {
	if plainKeyRe.MatchString(key) {
		return parent + "." + key
	}
	return fmt.Sprintf("%s[%q]", parent, key)
}
