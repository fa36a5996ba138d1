// Package web embeds the lesson viewer served at the site root.
package web

import "embed"

// Content holds the embedded viewer (index.html, app.js, styles.css).
//
//go:embed index.html app.js styles.css
var Content embed.FS
