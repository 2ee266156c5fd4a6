package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/transport"
)

// OpenAPIValidator checks request shape (path params, query types, JSON
// body types) against the published document before a handler runs.
// Business rules such as required reasons stay in the services so their
// error codes reach the client.
type OpenAPIValidator struct {
	*transport.BaseHandler
	router routers.Router
	prefix string
}

// LoadOpenAPI reads and validates the document at path.
func LoadOpenAPI(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// NewOpenAPIValidator matches paths with prefix stripped, so the document's
// paths stay relative to its /api/v1 server.
func NewOpenAPIValidator(base *transport.BaseHandler, doc *openapi3.T, prefix string) (*OpenAPIValidator, error) {
	doc.Servers = nil
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &OpenAPIValidator{BaseHandler: base, router: router, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probe := *r
		u := *r.URL
		u.Path = strings.TrimPrefix(u.Path, v.prefix)
		probe.URL = &u

		route, params, err := v.router.FindRoute(&probe)
		if err != nil {
			// undocumented routes fall through to the router's own 404/405
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.WriteAppError(w, r, requestShapeError(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestShapeError(err error) *internal.AppError {
	field := "body"
	if re, ok := err.(*openapi3filter.RequestError); ok && re.Parameter != nil {
		field = re.Parameter.Name
	}
	return internal.NewValidationFieldError(field, err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
}
