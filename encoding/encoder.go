package encoding

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Encoder serializes values in a text format.
type Encoder interface {
	Marshal(v any) ([]byte, error)
}

type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
)

// ModeDefault is the default mode for the encoder.
var ModeDefault = ModeYAML

// PredefinedEncoder returns the encoder for the mode, case insensitive.
func PredefinedEncoder(mode Mode) (Encoder, error) {
	switch strings.ToLower(mode) {
	case ModeJSON:
		return jsonEncoder{}, nil
	case ModeYAML, "yml":
		return yamlEncoder{}, nil
	case ModeTOML:
		return tomlEncoder{}, nil
	}
	return nil, errors.Newf("no predefined encoder: %s", mode)
}

var (
	_ Encoder = jsonEncoder{}
	_ Encoder = yamlEncoder{}
	_ Encoder = tomlEncoder{}
)

type jsonEncoder struct{}

func (jsonEncoder) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

type yamlEncoder struct{}

func (yamlEncoder) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

type tomlEncoder struct{}

// Marshal returns TOML, the value must encode as a table.
func (tomlEncoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(v); err != nil {
		return nil, errors.Wrap(err, "failed to encode TOML")
	}
	return b.Bytes(), nil
}
