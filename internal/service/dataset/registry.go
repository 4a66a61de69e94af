package dataset

import (
	"fmt"

	"github.com/spf13/viper"
)

// RegistryEntry 内置数据集的登记信息
type RegistryEntry struct {
	Name          string `mapstructure:"name" json:"name"`
	Description   string `mapstructure:"description" json:"description"`
	Source        string `mapstructure:"source" json:"source"`
	Identifier    string `mapstructure:"identifier" json:"identifier"`
	TargetColumn  string `mapstructure:"targetColumn" json:"target_column"`
	PositiveLabel string `mapstructure:"positiveLabel" json:"positive_label"`
}

// Registry 内置数据集注册表
type Registry struct {
	entries map[string]RegistryEntry
	order   []string
}

// LoadRegistry 从 YAML 文件加载注册表
func LoadRegistry(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read dataset registry: %w", err)
	}

	var raw struct {
		Datasets []RegistryEntry `mapstructure:"datasets"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset registry: %w", err)
	}

	r := &Registry{entries: make(map[string]RegistryEntry, len(raw.Datasets))}
	for _, e := range raw.Datasets {
		if e.Name == "" {
			return nil, fmt.Errorf("dataset registry entry missing name")
		}
		if _, dup := r.entries[e.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset registry entry %q", e.Name)
		}
		r.entries[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return r, nil
}

// Get 查找登记项
func (r *Registry) Get(name string) (RegistryEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// List 按登记顺序返回所有条目
func (r *Registry) List() []RegistryEntry {
	out := make([]RegistryEntry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}
