// Package config loads archive settings from YAML or TOML files and the
// process environment.
//
// A missing file is not an error: Load returns the defaults. Values absent
// from a file are filled with the same defaults. The provider API key never
// lives in the file; the file names the environment variable holding it
// (api_key_env), and LoadEnv can populate the environment from a .env file.
package config
