package convert

import (
	"testing"

	"github.com/google/uuid"
)

func TestInt(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value any
		want  int
	}{
		{"String", "42", 42},
		{"PaddedString", " 7 ", 7},
		{"Int64", int64(9), 9},
		{"WholeFloat", 3.0, 3},
		{"FractionalFloat", 3.5, -1},
		{"NotANumber", "abc", -1},
		{"Nil", nil, -1},
		{"Bool", true, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Int(tc.value, -1); got != tc.want {
				t.Errorf("Int(%v) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestInt64(t *testing.T) {
	if got := Int64("9007199254740993", 0); got != 9007199254740993 {
		t.Errorf("Int64 = %d", got)
	}
	if got := Int64(uint64(1<<63), 5); got != 5 {
		t.Errorf("Int64(overflow) = %d, want default", got)
	}
}

func TestFloat64(t *testing.T) {
	for _, tc := range []struct {
		value any
		want  float64
	}{
		{"2.5", 2.5},
		{float32(0.5), 0.5},
		{4, 4},
		{"nope", -1},
		{nil, -1},
	} {
		if got := Float64(tc.value, -1); got != tc.want {
			t.Errorf("Float64(%v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestBool(t *testing.T) {
	for _, tc := range []struct {
		value any
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"Yes", false, true},
		{"1", false, true},
		{"no", true, false},
		{"0", true, false},
		{"", true, false},
		{nil, true, true},
		{true, false, true},
		{0, true, false},
		{2, false, true},
		{3.5, true, true},
	} {
		if got := Bool(tc.value, tc.def); got != tc.want {
			t.Errorf("Bool(%#v, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestUUID(t *testing.T) {
	want := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	if got, ok := UUID("069a79f4-44e9-4726-a5be-fca90e38aaf5"); !ok || got != want {
		t.Errorf("UUID(string) = (%v, %v)", got, ok)
	}
	if got, ok := UUID(want); !ok || got != want {
		t.Errorf("UUID(uuid) = (%v, %v)", got, ok)
	}
	for _, bad := range []any{"not-a-uuid", nil, 12} {
		if got, ok := UUID(bad); ok || got != uuid.Nil {
			t.Errorf("UUID(%v) = (%v, %v), want (Nil, false)", bad, got, ok)
		}
	}
}

func TestString(t *testing.T) {
	if String(nil) != nil {
		t.Error("String(nil) != nil")
	}
	for _, tc := range []struct {
		value any
		want  string
	}{
		{"x", "x"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{true, "true"},
	} {
		if got := String(tc.value); got == nil || *got != tc.want {
			t.Errorf("String(%v) = %v, want %q", tc.value, got, tc.want)
		}
	}
}
