// Package web embeds the dashboard's templates and static assets.
package web

import "embed"

// TemplatesFS holds the page templates and their htmx fragments.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small htmx glue script.
//go:embed static/*
var StaticFS embed.FS
