package public

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var static embed.FS

// StaticFS exposes the stylesheet and toast script served under /public/static.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
