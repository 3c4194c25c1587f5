package config

import (
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docintel/internal/model"
)

func marshalLayers(layers []model.LayerSpec) ([]byte, error) {
	return yaml.Marshal(struct {
		Layers []model.LayerSpec `yaml:"layers"`
	}{layers})
}
