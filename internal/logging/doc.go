// Package logging builds the zerolog logger used by the CLI.
package logging
