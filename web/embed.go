package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed public
var publicFS embed.FS

// PublicFS returns the reservation and check-in pages rooted at public/.
func PublicFS() http.FileSystem {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
