package main

import (
	"github.com/vango-dev/reactor/internal/config"
)

// loadConfig loads path, or the working directory's configuration file
// when path is empty. Without a file the defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if config.Exists(".") {
		return config.Load(".")
	}
	cfg := config.New()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
