// Package web embeds the dashboard templates and static assets.
package web

import "embed"

// TemplatesFS holds the server-rendered login and dashboard pages.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small htmx glue script.
//
//go:embed static/*
var StaticFS embed.FS
