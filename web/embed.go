package web

import "embed"

// TemplatesFS holds the pages and the HTMX partials they load.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
