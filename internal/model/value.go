package model

import "time"

// ValueType tags the representation of a stored payload so it can be
// reconstructed on read.
type ValueType string

const (
	TypeNull    ValueType = "NULL"
	TypeString  ValueType = "STRING"
	TypeInteger ValueType = "INTEGER"
	TypeLong    ValueType = "LONG"
	TypeDouble  ValueType = "DOUBLE"
	TypeBoolean ValueType = "BOOLEAN"
	TypeList    ValueType = "LIST"
	TypeMap     ValueType = "MAP"
	TypeObject  ValueType = "OBJECT"
)

// String returns the string representation of the value type.
func (t ValueType) String() string {
	return string(t)
}

// IsValid checks whether the value type is a known tag.
func (t ValueType) IsValid() bool {
	switch t {
	case TypeNull, TypeString, TypeInteger, TypeLong, TypeDouble,
		TypeBoolean, TypeList, TypeMap, TypeObject:
		return true
	}
	return false
}

// IsStructured reports whether payloads of this type are JSON documents.
func (t ValueType) IsStructured() bool {
	return t == TypeList || t == TypeMap || t == TypeObject
}

// KeyedRecord is one value addressed by (namespace, identity, key).
// Value holds the encoded payload; it is nil for NULL values.
type KeyedRecord struct {
	Namespace string    `json:"namespace"`
	Identity  string    `json:"identity"`
	Key       string    `json:"key"`
	Value     *string   `json:"value"`
	ValueType ValueType `json:"value_type"`
	Metadata  *string   `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
