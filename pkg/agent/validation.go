package agent

import (
	"encoding/json"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against JSON schemas (draft 2020-12), caching
// compiled schemas keyed by their raw bytes so repeated tool invocations do
// not recompile.
type Validator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate checks data against the schema bytes. An empty schema accepts
// everything.
func (v *Validator) Validate(schema []byte, data any) error {
	if len(schema) == 0 {
		return nil
	}
	sch, err := v.compile(schema)
	if err != nil {
		return err
	}
	// Round-trip through JSON so typed values become generic.
	b, _ := json.Marshal(data)
	var inst any
	_ = json.Unmarshal(b, &inst)
	return sch.Validate(inst)
}

// Compile compiles the schema and returns an error only if the schema itself
// is invalid. Used at registration time to fail fast on bad descriptors.
func (v *Validator) Compile(schema []byte) error {
	if len(schema) == 0 {
		return nil
	}
	_, err := v.compile(schema)
	return err
}

func (v *Validator) compile(schema []byte) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.cache[string(schema)]; ok {
		return sch, nil
	}
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, err
	}
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile("mem://schema.json")
	if err != nil {
		return nil, err
	}
	v.cache[string(schema)] = sch
	return sch, nil
}
