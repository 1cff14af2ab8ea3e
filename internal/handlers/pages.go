package handlers

import (
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the embedded reservation and check-in pages.
type PageHandler struct {
	files      http.FileSystem
	fileServer http.Handler
}

func NewPageHandler(files http.FileSystem) *PageHandler {
	return &PageHandler{
		files:      files,
		fileServer: http.FileServer(files),
	}
}

// CheckInPage serves the organizer page for any ticket code; the page reads
// the code from its own URL.
func (h *PageHandler) CheckInPage(c *gin.Context) {
	h.serveHTML(c, "/check-in.html")
}

// Fallback serves a static asset when one exists and the reservation page
// otherwise. Unknown API paths stay 404 JSON.
func (h *PageHandler) Fallback(c *gin.Context) {
	p := path.Clean("/" + c.Request.URL.Path)

	if strings.HasPrefix(p, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
		return
	}

	if p != "/" && p != "/index.html" {
		if f, err := h.files.Open(p); err == nil {
			stat, statErr := f.Stat()
			f.Close()
			if statErr == nil && !stat.IsDir() {
				c.Status(http.StatusOK)
				h.fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
		}
	}

	h.serveHTML(c, "/index.html")
}

func (h *PageHandler) serveHTML(c *gin.Context, name string) {
	file, err := h.files.Open(name)
	if err != nil {
		c.String(http.StatusNotFound, "page not found")
		return
	}
	defer file.Close()

	rs, ok := file.(io.ReadSeeker)
	if !ok {
		c.String(http.StatusInternalServerError, "page unavailable")
		return
	}

	c.Status(http.StatusOK)
	c.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(c.Writer, c.Request, path.Base(name), time.Time{}, rs)
}
