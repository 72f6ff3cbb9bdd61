package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	schemagen "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// queryPayloads maps each client message type carrying a payload to the Go
// type the payload decodes into.
var queryPayloads = map[string]reflect.Type{
	MsgTypeCell:      reflect.TypeOf(CellQuery{}),
	MsgTypeNeighbors: reflect.TypeOf(NeighborsQuery{}),
	MsgTypeReachable: reflect.TypeOf(ReachableQuery{}),
	MsgTypePath:      reflect.TypeOf(PathQuery{}),
	MsgTypeDistance:  reflect.TypeOf(DistanceQuery{}),
	MsgTypeLocate:    reflect.TypeOf(LocateQuery{}),
}

// QueryTypes returns the message types that carry a validated payload.
func QueryTypes() []string {
	types := make([]string, 0, len(queryPayloads))
	for t := range queryPayloads {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GenerateSchema returns the JSON schema document for a message payload.
func GenerateSchema(msgType string) ([]byte, error) {
	t, ok := queryPayloads[msgType]
	if !ok {
		return nil, fmt.Errorf("no payload schema for message type %q", msgType)
	}

	reflector := schemagen.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(t)
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect %s payload", msgType)
	}
	// The compiler is pinned to a draft, so no $schema lookup is needed.
	schema.Version = ""
	schema.Title = msgType + " query"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", msgType, err)
	}
	return data, nil
}

// Validator checks client payloads against the generated schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator generates and compiles a schema for every query type.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(queryPayloads))}
	for _, msgType := range QueryTypes() {
		data, err := GenerateSchema(msgType)
		if err != nil {
			return nil, err
		}
		url := "mem://hexnav/" + msgType + ".schema.json"
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", msgType, err)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", msgType, err)
		}
		v.schemas[msgType] = s
	}
	return v, nil
}

// Validate checks a raw payload for a message type. Types without a schema
// accept anything.
func (v *Validator) Validate(msgType string, payload json.RawMessage) error {
	s, ok := v.schemas[msgType]
	if !ok {
		return nil
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("payload does not match %s schema: %w", msgType, err)
	}
	return nil
}

// Decode validates a payload and unmarshals it into dst.
func (v *Validator) Decode(msgType string, payload json.RawMessage, dst any) error {
	if err := v.Validate(msgType, payload); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dst)
}
