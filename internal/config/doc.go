// Package config loads, normalizes, and validates the gifsmith TOML
// configuration.
//
// Load resolves the config path (explicit flag, then ~/.config/gifsmith,
// then a project-local gifsmith.toml), applies repository defaults for any
// unset field, expands ~ in paths, and rejects unusable values before any
// component sees them.
package config
