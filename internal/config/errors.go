package config

import "errors"

var (
	// ErrMalformedConfig is returned when a config file is not valid YAML.
	ErrMalformedConfig = errors.New("malformed config file")

	// ErrInvalidOutput is returned for an unknown output format.
	ErrInvalidOutput = errors.New("invalid output format")
)
