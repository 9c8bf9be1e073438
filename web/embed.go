package web

import "embed"

// TemplatesFS embeds the ledger pages and partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and the small client script.
//
//go:embed static/*
var StaticFS embed.FS
