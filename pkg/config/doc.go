// Package config loads application configuration from environment variables
// (PERMITDESK_* prefix) with sensible defaults and startup validation.
package config
