package gf

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseSource decodes a source document. The "type" field selects the
// concrete source; unknown fields are rejected.
func ParseSource(data []byte) (Source, error) {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var src Source
	switch head.Type {
	case SourceMT:
		src = &MTSource{}
	case SourceDC:
		src = &DCSource{}
	case SourceExplosion:
		src = &ExplosionSource{}
	case SourceRectangular:
		src = &RectangularSource{}
	case "":
		return nil, fmt.Errorf("source type is required")
	default:
		return nil, fmt.Errorf("unknown source type %q", head.Type)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(src); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return src, nil
}

// LoadSource reads a source document from path.
func LoadSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return ParseSource(data)
}

// ParseTargets decodes a document of the form "targets: [...]".
func ParseTargets(data []byte) ([]Target, error) {
	var doc struct {
		Targets []Target `yaml:"targets"`
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined")
	}
	for i := range doc.Targets {
		if _, err := doc.Targets[i].Quantity.Derivatives(); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
	}
	return doc.Targets, nil
}

// LoadTargets reads a targets document from path.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return ParseTargets(data)
}
