// Package config provides configuration structures and utilities for reconweb.
// It defines the HTTP helper defaults (user agent, default headers, timeouts,
// proxy), the download cache location, the target scope and the list of
// interactsh collaborator providers.
package config
