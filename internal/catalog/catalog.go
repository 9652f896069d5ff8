// Package catalog holds the tool descriptors discovered from the tool
// server. The catalog is immutable once built and shared read-only by the
// provider adapters and the orchestrator.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"bistro-ai/internal/domain"
)

// defaultParameters is used for tools that advertise no parameter schema.
var defaultParameters = json.RawMessage(`{"type":"object"}`)

// Catalog is the immutable set of discovered tool descriptors.
type Catalog struct {
	tools  []domain.ToolSchema
	byName map[string]int
}

// New validates the discovered descriptors and builds a catalog.
// Every parameter schema must compile as JSON Schema; a malformed schema is
// rejected here, at discovery time, with ErrInvalidToolSchema.
func New(tools []domain.ToolSchema) (*Catalog, error) {
	c := &Catalog{
		tools:  make([]domain.ToolSchema, 0, len(tools)),
		byName: make(map[string]int, len(tools)),
	}

	compiler := jsonschema.NewCompiler()
	for _, t := range tools {
		if t.Name == "" {
			return nil, domain.NewDomainError("Catalog.New", domain.ErrInvalidToolSchema, "tool with empty name")
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, domain.NewDomainError("Catalog.New", domain.ErrInvalidToolSchema,
				fmt.Sprintf("duplicate tool %q", t.Name))
		}

		if len(t.Parameters) == 0 {
			t.Parameters = defaultParameters
		}
		if _, err := compiler.Compile([]byte(t.Parameters)); err != nil {
			return nil, domain.NewDomainError("Catalog.New", domain.ErrInvalidToolSchema,
				fmt.Sprintf("tool %q: %v", t.Name, err))
		}

		c.byName[t.Name] = len(c.tools)
		c.tools = append(c.tools, t)
	}

	return c, nil
}

// Declarations returns the provider-facing view of the catalog.
// The returned slice is a copy; callers cannot mutate the catalog.
func (c *Catalog) Declarations() []domain.ToolSchema {
	out := make([]domain.ToolSchema, len(c.tools))
	copy(out, c.tools)
	return out
}

// Has reports whether a tool with the given name was discovered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Get returns the descriptor for name.
func (c *Catalog) Get(name string) (domain.ToolSchema, bool) {
	i, ok := c.byName[name]
	if !ok {
		return domain.ToolSchema{}, false
	}
	return c.tools[i], true
}

// Len returns the number of discovered tools.
func (c *Catalog) Len() int { return len(c.tools) }
