// Package config loads typed configuration from environment variables.
//
// A .env file in the working directory is read once (missing file is fine),
// then struct tags are parsed with github.com/caarlos0/env. Each config type is
// parsed at most once per process and cached:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
package config
