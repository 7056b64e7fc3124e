// Package config holds the options of a search invocation and the rules
// file that carries the site-specific selectors, timings and rotation table.
//
// Precedence, lowest first: built-in defaults, .env and ROOMSCOUT_*
// environment variables, the .roomscout YAML file, then CLI flags.
package config
