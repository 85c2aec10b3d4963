package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/store"
)

// FormatVersion is written to, and required in, every export header.
const FormatVersion = "1"

// maxLine bounds a single JSONL line on import.
const maxLine = 64 << 20

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ValueCount  int       `json:"value_count"`
	ObjectCount int       `json:"object_count"`
	TagCount    int       `json:"tag_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type rawRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Counts reports how many rows of each kind an import wrote.
type Counts struct {
	Values  int `json:"values"`
	Objects int `json:"objects"`
	Tags    int `json:"tags"`
}

// ExportJSONL writes every value, object and tag in the store as JSONL to w,
// ordered by namespace, owner and key.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	values, err := s.ListAllValues(ctx)
	if err != nil {
		return fmt.Errorf("list values: %w", err)
	}
	objects, err := s.ListAllObjects(ctx)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	tags, err := s.ListAllTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     FormatVersion,
		Type:        "header",
		Timestamp:   now().UTC(),
		ValueCount:  len(values),
		ObjectCount: len(objects),
		TagCount:    len(tags),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, v := range values {
		if err := enc.Encode(record{Type: "value", Data: v}); err != nil {
			return fmt.Errorf("encode value %s/%s/%s: %w", v.Namespace, v.Identity, v.Key, err)
		}
	}
	for _, o := range objects {
		if err := enc.Encode(record{Type: "object", Data: o}); err != nil {
			return fmt.Errorf("encode object %s/%s: %w", o.Namespace, o.ID, err)
		}
	}
	for _, t := range tags {
		if err := enc.Encode(record{Type: "tag", Data: t}); err != nil {
			return fmt.Errorf("encode tag %s/%s/%s: %w", t.Namespace, t.TargetID, t.Name, err)
		}
	}
	return nil
}

// ImportJSONL replays an export produced by ExportJSONL into s. Every row is
// written in one transaction, so a malformed line leaves the store untouched.
// Existing rows with the same identity are overwritten; object versions keep
// counting from the target's current version.
func ImportJSONL(ctx context.Context, s store.Store, r io.Reader) (Counts, error) {
	var counts Counts
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		counts = Counts{}
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)

		line := 0
		sawHeader := false
		for sc.Scan() {
			line++
			raw := sc.Bytes()
			if len(raw) == 0 {
				continue
			}
			if !sawHeader {
				var h header
				if err := json.Unmarshal(raw, &h); err != nil {
					return fmt.Errorf("line %d: decode header: %w", line, err)
				}
				if h.Type != "header" || h.Version != FormatVersion {
					return fmt.Errorf("line %d: unsupported header (type %q, version %q)", line, h.Type, h.Version)
				}
				sawHeader = true
				continue
			}

			var rec rawRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if err := importRecord(ctx, tx, rec, &counts); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading export: %w", err)
		}
		if !sawHeader {
			return fmt.Errorf("empty export: missing header")
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func importRecord(ctx context.Context, tx store.Store, rec rawRecord, counts *Counts) error {
	switch rec.Type {
	case "value":
		var v model.KeyedRecord
		if err := json.Unmarshal(rec.Data, &v); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		if err := model.ValidateRecord(&v); err != nil {
			return err
		}
		if err := tx.PutValue(ctx, &v); err != nil {
			return fmt.Errorf("put value %s/%s/%s: %w", v.Namespace, v.Identity, v.Key, err)
		}
		counts.Values++
	case "object":
		var o model.ObjectRecord
		if err := json.Unmarshal(rec.Data, &o); err != nil {
			return fmt.Errorf("decode object: %w", err)
		}
		if err := model.ValidateObject(&o); err != nil {
			return err
		}
		if err := tx.PutObject(ctx, &o); err != nil {
			return fmt.Errorf("put object %s/%s: %w", o.Namespace, o.ID, err)
		}
		counts.Objects++
	case "tag":
		var t model.Tag
		if err := json.Unmarshal(rec.Data, &t); err != nil {
			return fmt.Errorf("decode tag: %w", err)
		}
		if err := model.ValidateTag(&t); err != nil {
			return err
		}
		if err := tx.AddTag(ctx, &t); err != nil {
			return fmt.Errorf("add tag %s/%s/%s: %w", t.Namespace, t.TargetID, t.Name, err)
		}
		counts.Tags++
	default:
		return fmt.Errorf("unknown record type %q", rec.Type)
	}
	return nil
}
