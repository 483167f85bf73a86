package relay

import (
	"embed"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

//go:embed static
var staticFS embed.FS

// indexHandler serves the embedded chat page for every non-API path so the
// page owns client-side routing.
func indexHandler() fiber.Handler {
	return adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, staticFS, "static/index.html")
	})
}
