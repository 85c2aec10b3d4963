// Package codec converts Go values to and from the tagged text payloads kept
// in the keyed storage table.
//
// Every stored value is a (payload, ValueType) pair. Scalars are kept in their
// canonical text form and collections or structured values as JSON, so a
// value written by Encode can be rebuilt with Decode into the same Go type.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

var (
	// ErrDecode is returned when a payload cannot be rebuilt into the requested type.
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when a value has no stored representation.
	ErrEncode = errors.New("encode failed")
)

// Encode returns the payload text and type tag for v. A nil value (or a nil
// pointer) encodes as (nil, TypeNull).
func Encode(v any) (*string, model.ValueType, error) {
	if v == nil {
		return nil, model.TypeNull, nil
	}
	if n, ok := v.(json.Number); ok {
		return encodeNumber(n)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, model.TypeNull, nil
		}
		rv = rv.Elem()
	}
	if n, ok := rv.Interface().(json.Number); ok {
		return encodeNumber(n)
	}

	var text string
	switch rv.Kind() {
	case reflect.String:
		return ptr(rv.String()), model.TypeString, nil
	case reflect.Bool:
		return ptr(strconv.FormatBool(rv.Bool())), model.TypeBoolean, nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return ptr(strconv.FormatInt(rv.Int(), 10)), model.TypeInteger, nil
	case reflect.Int:
		text = strconv.FormatInt(rv.Int(), 10)
		if fitsInt32(rv.Int()) {
			return &text, model.TypeInteger, nil
		}
		return &text, model.TypeLong, nil
	case reflect.Int64:
		return ptr(strconv.FormatInt(rv.Int(), 10)), model.TypeLong, nil
	case reflect.Uint8, reflect.Uint16:
		return ptr(strconv.FormatUint(rv.Uint(), 10)), model.TypeInteger, nil
	case reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ptr(strconv.FormatUint(rv.Uint(), 10)), model.TypeLong, nil
	case reflect.Float32:
		return ptr(strconv.FormatFloat(rv.Float(), 'g', -1, 32)), model.TypeDouble, nil
	case reflect.Float64:
		return ptr(strconv.FormatFloat(rv.Float(), 'g', -1, 64)), model.TypeDouble, nil
	default:
		return encodeJSON(v, rv.Kind())
	}
}

func encodeNumber(n json.Number) (*string, model.ValueType, error) {
	if i, err := n.Int64(); err == nil {
		if fitsInt32(i) {
			return ptr(strconv.FormatInt(i, 10)), model.TypeInteger, nil
		}
		return ptr(strconv.FormatInt(i, 10)), model.TypeLong, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid number %q", ErrEncode, n.String())
	}
	return ptr(strconv.FormatFloat(f, 'g', -1, 64)), model.TypeDouble, nil
}

// encodeJSON tags v by the shape of its JSON text, not its Go kind: []byte
// marshals to a string and json.RawMessage to whatever it holds. LIST is
// only used for arrays and MAP only for objects of a Go map.
func encodeJSON(v any, kind reflect.Kind) (*string, model.ValueType, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %T: %w", ErrEncode, v, err)
	}
	vt := model.TypeObject
	switch first(data) {
	case '[':
		vt = model.TypeList
	case '{':
		if kind == reflect.Map {
			vt = model.TypeMap
		}
	case 'n':
		switch kind {
		case reflect.Slice:
			vt = model.TypeList
		case reflect.Map:
			vt = model.TypeMap
		}
	}
	return ptr(string(data)), vt, nil
}

// first returns the first non-space byte of JSON text, or 0.
func first(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}

// decodeFunc is the fast path for one type tag. It reports false when the
// destination kind is not one the tag decodes directly.
type decodeFunc func(text string, dst reflect.Value) (bool, error)

var decoders = map[model.ValueType]decodeFunc{
	model.TypeString:  decodeString,
	model.TypeInteger: decodeInteger,
	model.TypeLong:    decodeInteger,
	model.TypeDouble:  decodeDouble,
	model.TypeBoolean: decodeBoolean,
	model.TypeList:    decodeStructured,
	model.TypeMap:     decodeStructured,
	model.TypeObject:  decodeStructured,
}

// Decode rebuilds the payload into dst, which must be a non-nil pointer.
// A NULL payload sets dst to its zero value. When the tag's fast path does
// not apply to dst, a string destination receives the raw text and any other
// destination is filled by a JSON decode of the text.
func Decode(payload *string, vt model.ValueType, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer, got %T", ErrDecode, dst)
	}
	return decodeValue(payload, vt, rv.Elem())
}

func decodeValue(payload *string, vt model.ValueType, target reflect.Value) error {
	if vt == model.TypeNull || payload == nil {
		target.SetZero()
		return nil
	}

	switch {
	case target.Kind() == reflect.Interface && target.NumMethod() == 0:
		v, err := DecodeAny(payload, vt)
		if err != nil {
			return err
		}
		if v == nil {
			target.SetZero()
			return nil
		}
		target.Set(reflect.ValueOf(v))
		return nil
	case target.Kind() == reflect.Pointer:
		elem := reflect.New(target.Type().Elem())
		if err := decodeValue(payload, vt, elem.Elem()); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}

	text := *payload
	if fn, ok := decoders[vt]; ok {
		handled, err := fn(text, target)
		if err != nil {
			return fmt.Errorf("%w: %s into %s: %w", ErrDecode, vt, target.Type(), err)
		}
		if handled {
			return nil
		}
	}
	return fallback(text, vt, target)
}

func fallback(text string, vt model.ValueType, target reflect.Value) error {
	if target.Kind() == reflect.String {
		target.SetString(text)
		return nil
	}
	if err := json.Unmarshal([]byte(text), target.Addr().Interface()); err != nil {
		return fmt.Errorf("%w: %s into %s: %w", ErrDecode, vt, target.Type(), err)
	}
	return nil
}

func decodeString(text string, dst reflect.Value) (bool, error) {
	if dst.Kind() != reflect.String {
		return false, nil
	}
	dst.SetString(text)
	return true, nil
}

func decodeInteger(text string, dst reflect.Value) (bool, error) {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return true, err
		}
		if dst.OverflowInt(n) {
			return true, fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return true, err
		}
		if dst.OverflowUint(n) {
			return true, fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
		return true, nil
	}
	return false, nil
}

func decodeDouble(text string, dst reflect.Value) (bool, error) {
	if dst.Kind() != reflect.Float32 && dst.Kind() != reflect.Float64 {
		return false, nil
	}
	f, err := strconv.ParseFloat(text, dst.Type().Bits())
	if err != nil {
		return true, err
	}
	dst.SetFloat(f)
	return true, nil
}

func decodeBoolean(text string, dst reflect.Value) (bool, error) {
	if dst.Kind() != reflect.Bool {
		return false, nil
	}
	b, err := strconv.ParseBool(text)
	if err != nil {
		return true, err
	}
	dst.SetBool(b)
	return true, nil
}

func decodeStructured(text string, dst reflect.Value) (bool, error) {
	if dst.Kind() == reflect.String {
		return false, nil
	}
	return true, json.Unmarshal([]byte(text), dst.Addr().Interface())
}

// DecodeAs is the generic form of Decode.
func DecodeAs[T any](payload *string, vt model.ValueType) (T, error) {
	var out T
	if err := Decode(payload, vt, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// DecodeAny rebuilds a payload into its natural Go shape: string, int,
// int64 (uint64 above MaxInt64), float64, bool, []any, map[string]any, any
// for OBJECT, nil for NULL.
// Unknown tags yield the raw text.
func DecodeAny(payload *string, vt model.ValueType) (any, error) {
	if vt == model.TypeNull || payload == nil {
		return nil, nil
	}
	text := *payload

	var (
		out any
		err error
	)
	switch vt {
	case model.TypeString:
		out = text
	case model.TypeInteger:
		out, err = strconv.Atoi(text)
	case model.TypeLong:
		out, err = strconv.ParseInt(text, 10, 64)
		if err != nil {
			if u, uerr := strconv.ParseUint(text, 10, 64); uerr == nil {
				out, err = u, nil
			}
		}
	case model.TypeDouble:
		out, err = strconv.ParseFloat(text, 64)
	case model.TypeBoolean:
		out, err = strconv.ParseBool(text)
	case model.TypeList:
		var list []any
		err = json.Unmarshal([]byte(text), &list)
		out = list
	case model.TypeMap:
		var m map[string]any
		err = json.Unmarshal([]byte(text), &m)
		out = m
	case model.TypeObject:
		err = json.Unmarshal([]byte(text), &out)
	default:
		out = text
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, vt, err)
	}
	return out, nil
}

func fitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

func ptr(s string) *string { return &s }
