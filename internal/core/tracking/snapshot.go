package tracking

import (
	"reflect"
	"time"
)

// snapshot holds the exported field values of an entity, flattened across
// embedded structs, in declaration order.
type snapshot struct {
	fields []string
	values map[string]any
}

func takeSnapshot(entity any) snapshot {
	snap := snapshot{values: make(map[string]any)}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return snap
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return snap
	}
	snap.collect(v)
	return snap
}

func (s *snapshot) collect(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			s.collect(value)
			continue
		}
		if _, seen := s.values[field.Name]; !seen {
			s.fields = append(s.fields, field.Name)
		}
		s.values[field.Name] = captureValue(value)
	}
}

func captureValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return captureValue(v.Elem())
	case reflect.Slice:
		if v.Len() == 0 {
			return nil
		}
		copied := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(copied, v)
		return copied.Interface()
	case reflect.Map:
		if v.Len() == 0 {
			return nil
		}
		copied := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			copied.SetMapIndex(iter.Key(), iter.Value())
		}
		return copied.Interface()
	default:
		return v.Interface()
	}
}

// diff returns the names of fields whose values differ, in declaration order.
func diff(before, after snapshot) []string {
	changed := make([]string, 0)
	for _, name := range after.fields {
		if !valuesEqual(before.values[name], after.values[name]) {
			changed = append(changed, name)
		}
	}
	return changed
}

func valuesEqual(a, b any) bool {
	ta, aIsTime := a.(time.Time)
	tb, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		return ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
