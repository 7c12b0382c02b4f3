// Package config loads and validates the conductor configuration from
// config.yaml. Defaults apply for anything the file does not set; a
// missing file is not an error.
package config
