// Package sanitize prepares arbitrary payloads for network transmission.
// Payloads assembled from in-memory state can contain reference cycles
// that encoding/json refuses to serialize; rather than failing the whole
// send, cyclic subgraphs are replaced with an empty placeholder. That is
// a deliberate data-loss tradeoff for pathological input.
package sanitize

import (
	"encoding/json"
	"reflect"
)

// emptyPlaceholder is what a cyclic subgraph collapses to on the wire.
var emptyPlaceholder = map[string]interface{}{}

// Marshal sanitizes v and serializes it to JSON.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(Clean(v))
}

// Clean returns a deep copy of v with every cyclic subgraph replaced by
// an empty object. The copy is built from maps, slices, and scalars, so
// the result is always serializable.
func Clean(v interface{}) interface{} {
	return clean(reflect.ValueOf(v), map[uintptr]bool{})
}

func clean(v reflect.Value, visited map[uintptr]bool) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return clean(v.Elem(), visited)

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return emptyPlaceholder
		}
		visited[ptr] = true
		defer delete(visited, ptr)
		return clean(v.Elem(), visited)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return emptyPlaceholder
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				// Non-string keys cannot round-trip through JSON; drop them.
				continue
			}
			out[key] = clean(iter.Value(), visited)
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Len() > 0 {
			ptr := v.Pointer()
			if visited[ptr] {
				return emptyPlaceholder
			}
			visited[ptr] = true
			defer delete(visited, ptr)
		}
		return cleanSequence(v, visited)

	case reflect.Array:
		return cleanSequence(v, visited)

	case reflect.Struct:
		out := make(map[string]interface{})
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, omitEmpty := jsonFieldName(field)
			if name == "" {
				continue
			}
			fv := v.Field(i)
			if omitEmpty && fv.IsZero() {
				continue
			}
			out[name] = clean(fv, visited)
		}
		return out

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		// Not representable in JSON.
		return nil

	default:
		return v.Interface()
	}
}

func cleanSequence(v reflect.Value, visited map[uintptr]bool) []interface{} {
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = clean(v.Index(i), visited)
	}
	return out
}

// jsonFieldName resolves the wire name of a struct field from its json
// tag, honoring "-" and omitempty.
func jsonFieldName(field reflect.StructField) (name string, omitEmpty bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name = field.Name
	if tag == "" {
		return name, false
	}
	parts := splitTag(tag)
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

func splitTag(tag string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	return parts
}
