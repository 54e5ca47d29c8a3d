package tools

import (
	"encoding/json"
	"strconv"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ArgumentType is the JSON type of a tool argument.
type ArgumentType string

const (
	TypeString  ArgumentType = "string"
	TypeNumber  ArgumentType = "number"
	TypeInteger ArgumentType = "integer"
)

// Constraints restricts the values accepted for an argument.
type Constraints struct {
	// Enum lists the allowed values, if not empty.
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty" toml:"enum,omitempty"`
	// Min is the inclusive lower bound for numeric arguments.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	// Max is the inclusive upper bound for numeric arguments.
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
}

// Argument describes one named tool argument.
type Argument struct {
	Name        string       `json:"name" yaml:"name" toml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Type        ArgumentType `json:"type" yaml:"type" toml:"type"`
	Required    bool         `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	// Default is applied when the argument is absent or null.
	Default     any          `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

// Descriptor describes a tool advertised to the host.
type Descriptor struct {
	Name        string      `json:"name" yaml:"name" toml:"name"`
	Description string      `json:"description" yaml:"description" toml:"description"`
	Arguments   []*Argument `json:"arguments" yaml:"arguments" toml:"arguments"`
}

// Argument returns the argument definition by name, or nil.
func (d *Descriptor) Argument(name string) *Argument {
	for _, a := range d.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Required returns the names of the required arguments in declaration order.
func (d *Descriptor) Required() []string {
	var res []string
	for _, a := range d.Arguments {
		if a.Required {
			res = append(res, a.Name)
		}
	}
	return res
}

// Defaults returns the default values of the optional arguments.
func (d *Descriptor) Defaults() map[string]any {
	res := map[string]any{}
	for _, a := range d.Arguments {
		if a.Default != nil {
			res[a.Name] = a.Default
		}
	}
	return res
}

// InputSchema returns the JSON schema of the tool arguments,
// with properties in declaration order.
func (d *Descriptor) InputSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, a := range d.Arguments {
		props.Set(a.Name, a.schema())
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   d.Required(),
	}
}

func (a *Argument) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        string(a.Type),
		Description: a.Description,
		Default:     a.Default,
	}
	if c := a.Constraints; c != nil {
		s.Enum = c.Enum
		if c.Min != nil {
			s.Minimum = toNumber(*c.Min)
		}
		if c.Max != nil {
			s.Maximum = toNumber(*c.Max)
		}
	}
	return s
}

func toNumber(v float64) json.Number {
	return json.Number(strconv.FormatFloat(v, 'f', -1, 64))
}

func bound(v float64) *float64 {
	return &v
}
