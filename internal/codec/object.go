package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// EncodeObject serializes v for the object store in the given format.
// MSGPACK payloads are base64 text so they fit the text column.
func EncodeObject(v any, format model.Format) (string, error) {
	switch format {
	case model.FormatJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %T as JSON: %w", ErrEncode, v, err)
		}
		return string(data), nil
	case model.FormatRaw:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		case nil:
			return "", nil
		default:
			return fmt.Sprint(x), nil
		}
	case model.FormatMsgpack:
		data, err := msgpack.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %T as MSGPACK: %w", ErrEncode, v, err)
		}
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrEncode, format)
}

// DecodeObject rebuilds an object payload into dst. RAW payloads go to
// string or []byte destinations as-is; other destinations get a JSON decode
// of the text.
func DecodeObject(payload string, format model.Format, dst any) error {
	switch format {
	case model.FormatJSON:
		if err := json.Unmarshal([]byte(payload), dst); err != nil {
			return fmt.Errorf("%w: JSON object into %T: %w", ErrDecode, dst, err)
		}
		return nil
	case model.FormatRaw:
		if b, ok := dst.(*[]byte); ok {
			*b = []byte(payload)
			return nil
		}
		return Decode(&payload, model.TypeString, dst)
	case model.FormatMsgpack:
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("%w: MSGPACK payload is not base64: %w", ErrDecode, err)
		}
		if err := msgpack.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: MSGPACK object into %T: %w", ErrDecode, dst, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown format %q", ErrDecode, format)
}
