// Package config loads, normalizes, and validates scrutin configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCRUTIN_ACCESS_TOKEN. The Config type centralizes the store endpoint, the
// session role, and the legal parameters of the ballot so the CLI and the
// local table store daemon discover them in one pass.
package config
