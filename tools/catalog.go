package tools

import (
	"github.com/cockroachdb/errors"
)

// Tool names
const (
	AskModel       = "ask-model"
	AskModelVision = "ask-model-vision"
)

// Argument names
const (
	ArgQuery           = "query"
	ArgImageReference  = "image_reference"
	ArgModel           = "model"
	ArgTemperature     = "temperature"
	ArgMaxOutputTokens = "max_output_tokens"
)

// Catalog is an immutable, ordered list of tool descriptors
// with unique names.
type Catalog struct {
	list   []*Descriptor
	byName map[string]*Descriptor
}

// NewCatalog returns a catalog of the provided descriptors,
// preserving the order of declaration.
func NewCatalog(descriptors ...*Descriptor) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if d == nil || d.Name == "" {
			return nil, errors.New("tool name is required")
		}
		if _, ok := c.byName[d.Name]; ok {
			return nil, errors.Newf("duplicate tool name: %s", d.Name)
		}
		c.byName[d.Name] = d
		c.list = append(c.list, d)
	}
	return c, nil
}

// DefaultCatalog returns the catalog with the ask-model
// and ask-model-vision tools.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(askModelDescriptor(), askModelVisionDescriptor())
	if err != nil {
		panic(err)
	}
	return c
}

// List returns the descriptors in declaration order.
func (c *Catalog) List() []*Descriptor {
	return append([]*Descriptor(nil), c.list...)
}

// Get returns the descriptor by tool name.
func (c *Catalog) Get(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

func askModelDescriptor() *Descriptor {
	return &Descriptor{
		Name:        AskModel,
		Description: "Ask my assistant models a direct question",
		Arguments: []*Argument{
			{
				Name:        ArgQuery,
				Description: "Ask assistant",
				Type:        TypeString,
				Required:    true,
			},
			{
				Name:        ArgModel,
				Description: "Model to use",
				Type:        TypeString,
				Default:     "gpt-4",
				Constraints: &Constraints{Enum: []any{"gpt-4", "gpt-3.5-turbo"}},
			},
			temperatureArgument(),
			maxOutputTokensArgument(),
		},
	}
}

func askModelVisionDescriptor() *Descriptor {
	return &Descriptor{
		Name:        AskModelVision,
		Description: "Ask my vision-capable models about an image",
		Arguments: []*Argument{
			{
				Name:        ArgQuery,
				Description: "Question about the image",
				Type:        TypeString,
				Required:    true,
			},
			{
				Name:        ArgImageReference,
				Description: "Path to the image file",
				Type:        TypeString,
				Required:    true,
			},
			{
				Name:        ArgModel,
				Description: "Vision model to use",
				Type:        TypeString,
				Default:     "gpt-4o",
				Constraints: &Constraints{Enum: []any{"gpt-4o", "gpt-4o-mini"}},
			},
			temperatureArgument(),
			maxOutputTokensArgument(),
		},
	}
}

func temperatureArgument() *Argument {
	return &Argument{
		Name:        ArgTemperature,
		Description: "Sampling temperature",
		Type:        TypeNumber,
		Default:     0.7,
		Constraints: &Constraints{Min: bound(0), Max: bound(2)},
	}
}

func maxOutputTokensArgument() *Argument {
	return &Argument{
		Name:        ArgMaxOutputTokens,
		Description: "Maximum tokens in response",
		Type:        TypeInteger,
		Default:     500,
		Constraints: &Constraints{Min: bound(1), Max: bound(4000)},
	}
}
