package codec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

type hologram struct {
	Lines    []string `json:"lines" msgpack:"lines"`
	Location position `json:"location" msgpack:"location"`
	Visible  bool     `json:"visible" msgpack:"visible"`
}

func sampleHologram() hologram {
	return hologram{
		Lines:    []string{"Welcome", "to spawn"},
		Location: position{World: "overworld", X: 10, Y: 64},
		Visible:  true,
	}
}

func TestObject_RoundTrip(t *testing.T) {
	for _, format := range []model.Format{model.FormatJSON, model.FormatMsgpack} {
		t.Run(format.String(), func(t *testing.T) {
			want := sampleHologram()
			payload, err := EncodeObject(want, format)
			if err != nil {
				t.Fatalf("EncodeObject: %v", err)
			}
			var got hologram
			if err := DecodeObject(payload, format, &got); err != nil {
				t.Fatalf("DecodeObject: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

func TestObject_JSONPayloadIsDocument(t *testing.T) {
	payload, err := EncodeObject(map[string]int{"a": 1}, model.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if payload != `{"a":1}` {
		t.Errorf("payload = %q, want {\"a\":1}", payload)
	}
}

func TestObject_Raw(t *testing.T) {
	payload, err := EncodeObject("line one\nline two", model.FormatRaw)
	if err != nil {
		t.Fatal(err)
	}

	var s string
	if err := DecodeObject(payload, model.FormatRaw, &s); err != nil || s != "line one\nline two" {
		t.Errorf("RAW into string = (%q, %v)", s, err)
	}

	var b []byte
	if err := DecodeObject(payload, model.FormatRaw, &b); err != nil || string(b) != payload {
		t.Errorf("RAW into []byte = (%q, %v)", b, err)
	}

	var v any
	if err := DecodeObject(payload, model.FormatRaw, &v); err != nil || v != payload {
		t.Errorf("RAW into any = (%v, %v)", v, err)
	}

	n, err := EncodeObject(12, model.FormatRaw)
	if err != nil || n != "12" {
		t.Errorf("EncodeObject(12, RAW) = (%q, %v), want 12", n, err)
	}
}

func TestObject_MsgpackIntoMap(t *testing.T) {
	payload, err := EncodeObject(map[string]any{"owner": "steve", "level": 3}, model.FormatMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := DecodeObject(payload, model.FormatMsgpack, &m); err != nil {
		t.Fatal(err)
	}
	if m["owner"] != "steve" {
		t.Errorf("owner = %v, want steve", m["owner"])
	}
}

func TestObject_Errors(t *testing.T) {
	var h hologram
	if err := DecodeObject("{", model.FormatJSON, &h); !errors.Is(err, ErrDecode) {
		t.Errorf("bad JSON error = %v, want ErrDecode", err)
	}
	if err := DecodeObject("%%%", model.FormatMsgpack, &h); !errors.Is(err, ErrDecode) {
		t.Errorf("bad base64 error = %v, want ErrDecode", err)
	}
	if err := DecodeObject("{}", model.Format("XML"), &h); !errors.Is(err, ErrDecode) {
		t.Errorf("unknown format error = %v, want ErrDecode", err)
	}
	if _, err := EncodeObject(h, model.Format("XML")); !errors.Is(err, ErrEncode) {
		t.Errorf("unknown format error = %v, want ErrEncode", err)
	}
	if _, err := EncodeObject(func() {}, model.FormatJSON); !errors.Is(err, ErrEncode) {
		t.Errorf("func as JSON error = %v, want ErrEncode", err)
	}
}
