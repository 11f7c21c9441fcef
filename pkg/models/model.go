package models

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DummySecretValue is what the provider returns in place of a secret it
// cannot read back. It must never be written to the live state.
const DummySecretValue = "********"

// Change records a single field transition within a live patch.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Changes maps a field name (its configuration key) to its transition.
type Changes map[string]Change

// FieldInfo describes one declared field of a model object. Index is the
// field's index path, so fields promoted from embedded structs resolve too.
type FieldInfo struct {
	Name      string
	Index     []int
	Key       bool
	ReadOnly  bool
	ModelOnly bool
	WebOnly   bool
	Nested    bool
}

var fieldCache sync.Map // reflect.Type -> []FieldInfo

// FieldsOf returns the declared model fields of a struct type, resolved from
// the json and model struct tags. Anonymous embedded structs are flattened
// the way encoding/json promotes them. Results are cached per type.
func FieldsOf(t reflect.Type) []FieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]FieldInfo)
	}

	fields := collectFields(t, nil)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []FieldInfo {
	var fields []FieldInfo
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		index := append(append([]int{}, prefix...), i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("json") == "" {
			fields = append(fields, collectFields(sf.Type, index)...)
			continue
		}
		name := strings.Split(sf.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		info := FieldInfo{Name: name, Index: index}
		for _, opt := range strings.Split(sf.Tag.Get("model"), ",") {
			switch opt {
			case "key":
				info.Key = true
			case "ro":
				info.ReadOnly = true
			case "mo":
				info.ModelOnly = true
			case "web":
				info.WebOnly = true
			case "nested":
				info.Nested = true
			}
		}
		fields = append(fields, info)
	}
	return fields
}

// DiffOptions controls which field classes participate in a diff.
type DiffOptions struct {
	// IncludeWebUI enables diffing of fields that can only be changed
	// through the browser client.
	IncludeWebUI bool
}

// Diff compares an expected model object against its live counterpart and
// returns the per-field changes. Fields that are nil in the expected object,
// pointers and slices alike, are treated as unmanaged and never produce a
// change. Read-only and model-only fields are always skipped.
func Diff(expected, current any, opts DiffOptions) Changes {
	ev := reflect.Indirect(reflect.ValueOf(expected))
	cv := reflect.Indirect(reflect.ValueOf(current))
	if ev.Type() != cv.Type() {
		panic(fmt.Sprintf("models: diffing mismatched types %s and %s", ev.Type(), cv.Type()))
	}

	changes := Changes{}
	for _, f := range FieldsOf(ev.Type()) {
		if f.ReadOnly || f.ModelOnly || f.Nested {
			continue
		}
		if f.WebOnly && !opts.IncludeWebUI {
			continue
		}
		efv := ev.FieldByIndex(f.Index)
		cfv := cv.FieldByIndex(f.Index)
		if (efv.Kind() == reflect.Ptr || efv.Kind() == reflect.Slice) && efv.IsNil() {
			continue
		}
		from := deref(cfv)
		to := deref(efv)
		if !cmp.Equal(from, to, cmpopts.EquateEmpty()) {
			changes[f.Name] = Change{From: from, To: to}
		}
	}
	return changes
}

// KeyOf returns the value of the object's key field (name, url or pattern
// depending on the resource).
func KeyOf(obj any) string {
	v := reflect.Indirect(reflect.ValueOf(obj))
	for _, f := range FieldsOf(v.Type()) {
		if !f.Key {
			continue
		}
		return fmt.Sprintf("%v", deref(v.FieldByIndex(f.Index)))
	}
	return ""
}

// ToParams flattens an object into its configuration key/value form. Nil
// pointers and nil slices are omitted; read-only and model-only fields are
// skipped unless includeReadOnly is set.
func ToParams(obj any, includeReadOnly bool) map[string]any {
	v := reflect.Indirect(reflect.ValueOf(obj))
	params := make(map[string]any)
	for _, f := range FieldsOf(v.Type()) {
		if f.ModelOnly || f.Nested {
			continue
		}
		if f.ReadOnly && !includeReadOnly {
			continue
		}
		fv := v.FieldByIndex(f.Index)
		if (fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Slice) && fv.IsNil() {
			continue
		}
		params[f.Name] = deref(fv)
	}
	return params
}

// WebFieldNames lists the configuration keys of an object's web-only fields.
func WebFieldNames(obj any) []string {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var names []string
	for _, f := range FieldsOf(v.Type()) {
		if f.WebOnly {
			names = append(names, f.Name)
		}
	}
	return names
}

// ApplyParams merges loosely typed values into a model by configuration
// key. Values read back from the browser client arrive as strings or bools
// regardless of the field type, so they are coerced where possible. Nil
// values leave the field untouched.
func ApplyParams(obj any, params map[string]any) error {
	v := reflect.Indirect(reflect.ValueOf(obj))
	fields := FieldsOf(v.Type())

	byName := make(map[string]FieldInfo, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	for name, value := range params {
		f, ok := byName[name]
		if !ok || f.Nested {
			return fmt.Errorf("unknown setting '%s' for %s", name, v.Type().Name())
		}
		if value == nil {
			continue
		}
		if err := setField(v.FieldByIndex(f.Index), value); err != nil {
			return fmt.Errorf("cannot set '%s': %w", name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, value any) error {
	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), value); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	switch fv.Kind() {
	case reflect.Bool:
		switch b := value.(type) {
		case bool:
			fv.SetBool(b)
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return fmt.Errorf("value '%s' is not a boolean", b)
			}
			fv.SetBool(parsed)
		default:
			return fmt.Errorf("value '%v' is not a boolean", value)
		}
	case reflect.String:
		fv.SetString(fmt.Sprintf("%v", value))
	case reflect.Int:
		switch n := value.(type) {
		case int:
			fv.SetInt(int64(n))
		case int64:
			fv.SetInt(n)
		case float64:
			fv.SetInt(int64(n))
		case string:
			parsed, err := strconv.Atoi(n)
			if err != nil {
				return fmt.Errorf("value '%s' is not a number", n)
			}
			fv.SetInt(int64(parsed))
		default:
			return fmt.Errorf("value '%v' is not a number", value)
		}
	case reflect.Slice:
		switch items := value.(type) {
		case []string:
			fv.Set(reflect.ValueOf(items))
		case []any:
			strs := make([]string, len(items))
			for i, item := range items {
				strs[i] = fmt.Sprintf("%v", item)
			}
			fv.Set(reflect.ValueOf(strs))
		default:
			return fmt.Errorf("value '%v' is not a list", value)
		}
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

func deref(v reflect.Value) any {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
