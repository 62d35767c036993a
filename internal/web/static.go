package web

import (
	"embed"
)

// staticFiles holds the booth page, its script and stylesheet.
//
//go:embed static/*
var staticFiles embed.FS
