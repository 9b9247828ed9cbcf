// Package web embeds the HTML templates and static assets served by the
// materials web server.
package web

import "embed"

// TemplatesFS holds the page templates, parsed once at start-up.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds CSS and JavaScript served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
