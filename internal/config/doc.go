// Package config provides YAML configuration loading and validation for the
// link daemon: server endpoints, per-link framing behavior, FEC matrix and
// key material locations, and logging.
package config
