// Package config defines the application's configuration structure and
// loading logic. Configuration is read from an optional config file and
// environment variables (NOVAQ_ prefix), with environment variables
// taking precedence, and is validated before use.
package config
