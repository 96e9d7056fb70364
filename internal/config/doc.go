// Package config loads broker settings from the environment, optionally
// seeded from a .env file.
package config
