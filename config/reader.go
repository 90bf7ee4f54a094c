package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ReadConfig loads the TOML config at path over the compiled-in defaults
// and installs the result as the package-global Config.
func ReadConfig(path string) (*configDefinition, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Config, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg configDefinition
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	Config = cfg
	return &Config, nil
}
