package model

import "time"

// Format describes how an object payload is serialized.
type Format string

const (
	FormatJSON    Format = "JSON"
	FormatRaw     Format = "RAW"
	FormatMsgpack Format = "MSGPACK"
)

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// IsValid checks whether the format is a known value.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatRaw, FormatMsgpack:
		return true
	}
	return false
}

// ObjectRecord is a whole structured object stored under (namespace, id).
// Version starts at 1 and is incremented by every overwrite.
type ObjectRecord struct {
	Namespace string    `json:"namespace"`
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	Format    Format    `json:"format"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag is a named, optionally valued label attached to (namespace, target).
type Tag struct {
	Namespace string    `json:"namespace"`
	TargetID  string    `json:"target_id"`
	Name      string    `json:"name"`
	Value     *string   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
