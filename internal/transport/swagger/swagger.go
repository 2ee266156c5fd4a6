// Package swagger serves the Swagger UI for the published OpenAPI document.
package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Handler serves the UI pointed at specURL, collapsed to tag level since the
// request endpoints make for a long page.
func Handler(specURL string) http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(specURL),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	)
}
