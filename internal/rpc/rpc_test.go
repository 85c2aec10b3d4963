package rpc

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

func TestStructRoundTrip(t *testing.T) {
	payload := "7"
	empty := ""
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Reply{
		Records: []*model.KeyedRecord{
			{Namespace: "stats", Identity: "p1", Key: "kills", Value: &payload, ValueType: model.TypeInteger, CreatedAt: created},
			{Namespace: "stats", Identity: "p1", Key: "gone", ValueType: model.TypeNull},
		},
		Tags:     map[string]*string{"vip": nil, "rank": &empty},
		Affected: 9000000000,
	}

	s, err := ToStruct(in)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	var out Reply
	if err := FromStruct(s, &out); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}

	if out.Affected != 9000000000 {
		t.Errorf("Affected = %d", out.Affected)
	}
	if len(out.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(out.Records))
	}
	kills := out.Records[0]
	if kills.Value == nil || *kills.Value != "7" || kills.ValueType != model.TypeInteger || !kills.CreatedAt.Equal(created) {
		t.Errorf("kills = %+v", kills)
	}
	if out.Records[1].Value != nil {
		t.Errorf("NULL record value = %v, want nil", *out.Records[1].Value)
	}
	if v, ok := out.Tags["vip"]; !ok || v != nil {
		t.Errorf("vip tag = (%v, %v), want (nil, true)", v, ok)
	}
	if v := out.Tags["rank"]; v == nil || *v != "" {
		t.Errorf("rank tag = %v, want empty string", v)
	}
}

func TestFromStruct_Nil(t *testing.T) {
	var req Request
	if err := FromStruct(nil, &req); err != nil {
		t.Fatalf("FromStruct(nil): %v", err)
	}
	if req.Namespace != "" || req.Records != nil {
		t.Errorf("req = %+v, want zero", req)
	}
}

func TestFullMethod(t *testing.T) {
	if got := FullMethod(MethodHealth); got != "/asgdb.v1.StorageService/Health" {
		t.Errorf("FullMethod = %q", got)
	}
}
