// Package config loads, normalizes, and validates floravision configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a neighbouring .env file, and honours
// environment fallbacks such as FLORAVISION_DETECTOR_ENDPOINT and
// NOMINATIM_EMAIL. The Config type centralizes every knob the CLI and API
// server need so detector, geocoder, and cache settings are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
