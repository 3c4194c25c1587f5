package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docintel/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadLayers reads the layer set from path, or returns the built-in default
// set when path is empty. The YAML has a top-level "layers" key.
func LoadLayers(path string) (model.LayerSet, error) {
	if path == "" {
		return model.DefaultLayers(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.LayerSet{}, eris.Wrapf(err, "config: read layers %s", path)
	}
	return ParseLayers(data)
}

// ParseLayers decodes and validates a YAML layer file.
func ParseLayers(data []byte) (model.LayerSet, error) {
	var wrapper struct {
		Layers []model.LayerSpec `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return model.LayerSet{}, eris.Wrap(err, "config: parse layers")
	}

	if len(wrapper.Layers) != model.LayerCount {
		return model.LayerSet{}, eris.Errorf("config: want %d layers, got %d", model.LayerCount, len(wrapper.Layers))
	}

	var set model.LayerSet
	for i, l := range wrapper.Layers {
		if err := ValidateLayer(l); err != nil {
			return model.LayerSet{}, err
		}
		if l.ID != i+1 {
			return model.LayerSet{}, eris.Errorf("config: layer %q at position %d has id %d, want %d", l.Name, i+1, l.ID, i+1)
		}
		set[i] = l
	}
	return set, nil
}

// ValidateLayer checks a single layer's field constraints.
func ValidateLayer(l model.LayerSpec) error {
	if err := validate.Struct(l); err != nil {
		return eris.Wrapf(err, "config: invalid layer %d (%s)", l.ID, l.Name)
	}
	return nil
}
