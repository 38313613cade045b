// Package config provides configuration loading and validation for the
// recording notebook. It handles YAML-based configuration with per-section
// validation and built-in defaults for every parameter.
package config
