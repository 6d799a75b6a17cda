package backend

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gfstore/internal/config"
)

// Registry maps modelling code ids to families.
type Registry struct {
	families map[string]Family
}

// NewRegistry creates a registry holding the given families.
// Panics on duplicate ids.
func NewRegistry(families ...Family) *Registry {
	r := &Registry{families: make(map[string]Family)}
	for _, f := range families {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a family.
func (r *Registry) Register(f Family) error {
	if _, ok := r.families[f.ID()]; ok {
		return fmt.Errorf("modelling code %q already registered", f.ID())
	}
	r.families[f.ID()] = f
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.families[id]
	return ok
}

// Get returns the family for id.
func (r *Registry) Get(id string) (Family, error) {
	f, ok := r.families[id]
	if !ok {
		return nil, fmt.Errorf("modelling code %q is not registered", id)
	}
	return f, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.families))
	for id := range r.families {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExtraSource reads stored backend settings. A store handle satisfies it.
type ExtraSource interface {
	Extra(id string) ([]byte, error)
}

// LoadExtra decodes and validates the settings for cfg's modelling code,
// falling back to the family default when none are stored.
func (r *Registry) LoadExtra(cfg *config.Config, src ExtraSource) (Family, Extra, error) {
	f, err := r.Get(cfg.ModellingCodeID)
	if err != nil {
		return nil, nil, err
	}

	var extra Extra
	data, err := src.Extra(f.ID())
	switch {
	case errors.Is(err, os.ErrNotExist):
		extra = f.DefaultExtra()
	case err != nil:
		return nil, nil, err
	default:
		if extra, err = f.DecodeExtra(data); err != nil {
			return nil, nil, fmt.Errorf("decode %s settings: %w", f.ID(), err)
		}
	}

	if err := extra.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid %s settings: %w", f.ID(), err)
	}
	return f, extra, nil
}

// DecodeYAML strictly decodes extra settings on top of defaults.
func DecodeYAML(data []byte, into any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// EncodeExtra renders settings as YAML for storage.
func EncodeExtra(extra Extra) ([]byte, error) {
	data, err := yaml.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encode extra: %w", err)
	}
	return data, nil
}
