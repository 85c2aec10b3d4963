package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/config"
	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/ui"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"12", json.Number("12")},
		{"1.5", json.Number("1.5")},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"plain text", "plain text"},
		{"", ""},
		{"1 2", "1 2"},
		{"{broken", "{broken"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	list, ok := parseValue("[1,2]").([]any)
	if !ok || len(list) != 2 {
		t.Errorf("parseValue(list) = %#v", list)
	}
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"coins=12", "title=knight", "url=a=b"})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	if values["coins"] != json.Number("12") || values["title"] != "knight" || values["url"] != "a=b" {
		t.Errorf("values = %#v", values)
	}

	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("parseAssignments(%q): expected error", bad)
		}
	}
}

func TestObjectPayload(t *testing.T) {
	payload, err := objectPayload(`{"level": 3, "ratio": 0.5, "tags": [1]}`, model.FormatMsgpack)
	if err != nil {
		t.Fatalf("objectPayload: %v", err)
	}
	var got map[string]any
	if err := codec.DecodeObject(payload, model.FormatMsgpack, &got); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if got["ratio"] != 0.5 {
		t.Errorf("ratio = %#v, want 0.5", got["ratio"])
	}

	if _, err := objectPayload("not json", model.FormatMsgpack); err == nil {
		t.Error("expected error for non-JSON msgpack body")
	}
	if p, _ := objectPayload("  {\"a\":1}\n", model.FormatJSON); p != `{"a":1}` {
		t.Errorf("JSON payload = %q", p)
	}
	if p, _ := objectPayload("as is\n", model.FormatRaw); p != "as is\n" {
		t.Errorf("raw payload = %q", p)
	}
}

func TestPlainNumbers(t *testing.T) {
	v := plainNumbers(map[string]any{
		"n": json.Number("7"),
		"f": json.Number("2.5"),
		"l": []any{json.Number("1")},
	}).(map[string]any)
	if v["n"] != int64(7) || v["f"] != 2.5 || v["l"].([]any)[0] != int64(1) {
		t.Errorf("plainNumbers = %#v", v)
	}
}

func TestDisplayValue(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		rec  model.KeyedRecord
		want string
	}{
		{model.KeyedRecord{Value: str("hi"), ValueType: model.TypeString}, "hi"},
		{model.KeyedRecord{Value: str("42"), ValueType: model.TypeInteger}, "42"},
		{model.KeyedRecord{ValueType: model.TypeNull}, "null"},
		{model.KeyedRecord{Value: str(`[1, 2]`), ValueType: model.TypeList}, "[1,2]"},
		{model.KeyedRecord{Value: str("x"), ValueType: model.TypeInteger}, "x"},
	}
	for _, tt := range tests {
		if got := displayValue(&tt.rec); got != tt.want {
			t.Errorf("displayValue(%s) = %q, want %q", tt.rec.ValueType, got, tt.want)
		}
	}
}

func TestReadEvents(t *testing.T) {
	stream := ":keepalive\n\n" +
		"id:1\nevent:asgdb.value.put\ndata:{\"key\":\"coins\"}\n\n" +
		"id:2\nevent:asgdb.tag.added\ndata:{\"name\":\"vip\"}\n\n"

	type got struct{ id, topic, data string }
	var seen []got
	err := readEvents(strings.NewReader(stream), func(id, topic, data string) {
		seen = append(seen, got{id, topic, data})
	})
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("got %d events, want 2", len(seen))
	}
	if seen[0] != (got{"1", "asgdb.value.put", `{"key":"coins"}`}) {
		t.Errorf("first event = %+v", seen[0])
	}
	if seen[1].topic != "asgdb.tag.added" {
		t.Errorf("second topic = %q", seen[1].topic)
	}
}

func TestPrintEvent(t *testing.T) {
	ui.ForceNoColor()

	var buf bytes.Buffer
	printEvent(&buf, "asgdb.value.put", []byte(`{"namespace":"Economy","identity":"p1","key":"coins","value_type":"INTEGER"}`))
	out := buf.String()
	for _, want := range []string{"asgdb.value.put", "namespace=Economy", "key=coins", "value_type=INTEGER"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	buf.Reset()
	jsonOutput = true
	defer func() { jsonOutput = false }()
	printEvent(&buf, "asgdb.object.deleted", []byte(`{"id":"x"}`))
	var decoded struct {
		Topic string         `json:"topic"`
		Event map[string]any `json:"event"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output %q: %v", buf.String(), err)
	}
	if decoded.Topic != "asgdb.object.deleted" || decoded.Event["id"] != "x" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestConvertValue(t *testing.T) {
	str := func(s string) *string { return &s }
	rec := func(v string, vt model.ValueType) *model.KeyedRecord {
		return &model.KeyedRecord{Key: "k", Value: str(v), ValueType: vt}
	}
	tests := []struct {
		name string
		rec  *model.KeyedRecord
		as   string
		want any
	}{
		{"IntFromString", rec("42", model.TypeString), "int", int64(42)},
		{"LongFromLong", rec("9000000000", model.TypeLong), "long", int64(9000000000)},
		{"FloatFromInt", rec("3", model.TypeInteger), "float", 3.0},
		{"BoolFromYes", rec("yes", model.TypeString), "bool", true},
		{"UUID", rec(steve, model.TypeString), "uuid", steve},
		{"String", rec("7", model.TypeInteger), "string", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.rec, tt.as)
			if err != nil {
				t.Fatalf("convertValue: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	for _, bad := range []struct {
		rec *model.KeyedRecord
		as  string
	}{
		{rec("abc", model.TypeString), "int"},
		{rec("9000000000", model.TypeLong), "int"},
		{rec("nope", model.TypeString), "uuid"},
		{rec("1", model.TypeInteger), "date"},
	} {
		if _, err := convertValue(bad.rec, bad.as); err == nil {
			t.Errorf("convertValue(%s as %s): expected error", *bad.rec.Value, bad.as)
		}
	}
}

const steve = "069a79f4-44e9-4726-a5be-fca90e38aaf5"

// TestLocalCommands runs commands end to end against a temporary SQLite file.
func TestLocalCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ASGDB_DB_DIR", dir)
	t.Setenv("ASGDB_BACKUP_ON_SHUTDOWN", "false")
	transport = "local"

	run := func(args ...string) {
		t.Helper()
		rootCmd.SetArgs(args)
		rootCmd.SetOut(&bytes.Buffer{})
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("asgdb %v: %v", args, err)
		}
	}
	run("set", "Economy", "p1", "coins=12", "rank=gold")
	run("tag", "add", "Economy", "p1", "vip")
	run("object", "put", "Quests", "q1", "--data", `{"step":2}`)
	run("delete", "Economy", "p1", "rank")
	run("set", "Economy", steve, "balance=3.5")
	run("player", "delete", "Economy", steve)

	c, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ctx := context.Background()
	e, err := engine.Open(ctx, c)
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	defer e.Shutdown(ctx)

	if n, ok := engine.Get[int](ctx, e, "Economy", "p1", "coins"); !ok || n != 12 {
		t.Errorf("coins = (%v, %v), want (12, true)", n, ok)
	}
	if _, ok := e.GetRecord(ctx, "Economy", "p1", "rank"); ok {
		t.Error("rank still stored after delete")
	}
	if tags := e.GetTags(ctx, "Economy", "p1"); len(tags) != 1 {
		t.Errorf("tags = %v", tags)
	}
	if e.HasData(ctx, "Economy", steve) {
		t.Error("player data still stored after player delete")
	}
	if obj, ok := e.GetObjectRecord(ctx, "Quests", "q1"); !ok || obj.Payload != `{"step":2}` {
		t.Errorf("object = (%+v, %v)", obj, ok)
	}
}
