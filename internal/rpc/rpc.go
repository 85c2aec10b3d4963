// Package rpc defines the StorageService wire contract shared by the gRPC
// server and client. Messages are google.protobuf.Struct values built from
// the JSON form of Request and Reply, so no generated code is needed.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "asgdb.v1.StorageService"

// Method names.
const (
	MethodHealth         = "Health"
	MethodListNamespaces = "ListNamespaces"
	MethodListIdentities = "ListIdentities"
	MethodGetValues      = "GetValues"
	MethodGetValue       = "GetValue"
	MethodPutValues      = "PutValues"
	MethodDeleteValues   = "DeleteValues"
	MethodDeleteValue    = "DeleteValue"
	MethodListObjects    = "ListObjects"
	MethodGetObject      = "GetObject"
	MethodPutObject      = "PutObject"
	MethodDeleteObject   = "DeleteObject"
	MethodGetTags        = "GetTags"
	MethodAddTag         = "AddTag"
	MethodRemoveTag      = "RemoveTag"
	MethodFindTagged     = "FindTagged"
)

// FullMethod returns the "/service/method" path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Request carries the arguments of every method. Identity doubles as the
// object id and the tag target.
type Request struct {
	Namespace string               `json:"namespace,omitempty"`
	Identity  string               `json:"identity,omitempty"`
	Key       string               `json:"key,omitempty"`
	Name      string               `json:"name,omitempty"`
	Value     *string              `json:"value,omitempty"`
	Records   []*model.KeyedRecord `json:"records,omitempty"`
	Replace   bool                 `json:"replace,omitempty"`
	Object    *model.ObjectRecord  `json:"object,omitempty"`
}

// Reply carries the result of every method.
type Reply struct {
	Status   string               `json:"status,omitempty"`
	Names    []string             `json:"names,omitempty"`
	Records  []*model.KeyedRecord `json:"records,omitempty"`
	Record   *model.KeyedRecord   `json:"record,omitempty"`
	Object   *model.ObjectRecord  `json:"object,omitempty"`
	Tags     map[string]*string   `json:"tags,omitempty"`
	Affected int64                `json:"affected,omitempty"`
}

// ToStruct converts v to a Struct through its JSON encoding.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into dst through its JSON encoding.
func FromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}
