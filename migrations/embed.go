// Package migrations embeds the goose migrations for the metering tables.
// The workouts table read by the milestone counter belongs to the web app and is not managed here.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
