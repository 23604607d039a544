// Package appfs embeds the files the binaries need at runtime: SQL migrations, email templates and data sets.
package appfs

import "embed"

//go:embed migrations templates data
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "data/common-passwords.txt"
)
