package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// displayValue formats a stored payload for a terminal: scalars as text and
// structured values as compact JSON.
func displayValue(rec *model.KeyedRecord) string {
	v, err := codec.DecodeAny(rec.Value, rec.ValueType)
	if err != nil {
		if rec.Value != nil {
			return *rec.Value
		}
		return ""
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []any, map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}

// plainRecord is the JSON shape printed for a value with --json.
type plainRecord struct {
	Key       string          `json:"key"`
	Type      model.ValueType `json:"type"`
	Value     any             `json:"value"`
	Metadata  *string         `json:"metadata,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

func toPlain(rec *model.KeyedRecord) plainRecord {
	v, err := codec.DecodeAny(rec.Value, rec.ValueType)
	if err != nil && rec.Value != nil {
		v = *rec.Value
	}
	p := plainRecord{Key: rec.Key, Type: rec.ValueType, Value: v, Metadata: rec.Metadata}
	if !rec.UpdatedAt.IsZero() {
		p.UpdatedAt = rec.UpdatedAt.Format("2006-01-02 15:04:05")
	}
	return p
}

func printRecordsJSON(recs []*model.KeyedRecord) error {
	out := make(map[string]plainRecord, len(recs))
	for _, r := range recs {
		out[r.Key] = toPlain(r)
	}
	return printJSON(out)
}

func printRecordsTable(w io.Writer, ns, id string, recs []*model.KeyedRecord) {
	fmt.Fprintf(w, "%s / %s\n", ui.RenderKey(ns), ui.RenderKey(id))
	if len(recs) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("  (no values)"))
		return
	}
	width := ui.Width()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KEY\tTYPE\tVALUE")
	for _, r := range recs {
		value := ui.Truncate(strings.ReplaceAll(displayValue(r), "\n", " "), max(width-40, 20))
		fmt.Fprintf(tw, "  %s\t%s\t%s\n",
			ui.RenderKey(r.Key),
			ui.RenderMuted(r.ValueType.String()),
			ui.RenderValue(r.ValueType, value),
		)
	}
	tw.Flush()
}

func printList(items []string, empty string) error {
	if jsonOutput {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println(ui.RenderMuted(empty))
		return nil
	}
	for _, s := range items {
		fmt.Println(s)
	}
	return nil
}

func printObject(obj *model.ObjectRecord) error {
	if jsonOutput {
		out := map[string]any{
			"namespace":  obj.Namespace,
			"id":         obj.ID,
			"format":     obj.Format,
			"version":    obj.Version,
			"created_at": obj.CreatedAt,
			"updated_at": obj.UpdatedAt,
		}
		var body any
		if err := codec.DecodeObject(obj.Payload, obj.Format, &body); err == nil {
			out["object"] = body
		} else {
			out["payload"] = obj.Payload
		}
		return printJSON(out)
	}

	fmt.Printf("Namespace:  %s\n", obj.Namespace)
	fmt.Printf("ID:         %s\n", obj.ID)
	fmt.Printf("Format:     %s\n", obj.Format)
	fmt.Printf("Version:    %d\n", obj.Version)
	if !obj.CreatedAt.IsZero() {
		fmt.Printf("Created At: %s\n", obj.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !obj.UpdatedAt.IsZero() {
		fmt.Printf("Updated At: %s\n", obj.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	fmt.Println(objectBody(obj))
	return nil
}

// objectBody renders an object's payload as indented JSON where it can be
// decoded, and as raw text otherwise.
func objectBody(obj *model.ObjectRecord) string {
	if obj.Format == model.FormatRaw {
		return obj.Payload
	}
	var body any
	if err := codec.DecodeObject(obj.Payload, obj.Format, &body); err != nil {
		return obj.Payload
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return obj.Payload
	}
	return string(data)
}

func printTags(tags map[string]*string) error {
	if jsonOutput {
		return printJSON(tags)
	}
	if len(tags) == 0 {
		fmt.Println(ui.RenderMuted("(no tags)"))
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE")
	for _, name := range slices.Sorted(maps.Keys(tags)) {
		value := ui.RenderMuted("-")
		if v := tags[name]; v != nil {
			value = *v
		}
		fmt.Fprintf(tw, "%s\t%s\n", ui.RenderKey(name), value)
	}
	return tw.Flush()
}
