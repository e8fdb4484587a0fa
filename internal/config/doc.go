// Package config defines the engine settings and provides helpers to load,
// validate and save them in YAML format.
//
// Load reads the file through viper so every key can be overridden with an
// ALARM_ENGINE_* environment variable; Save writes YAML with restricted
// permissions.
package config
