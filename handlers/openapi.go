package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	openapi3_routers "github.com/getkin/kin-openapi/routers"
	openapi3_legacy "github.com/getkin/kin-openapi/routers/legacy"
)

// OpenAPIValidator rejects requests that do not match the API document.
type OpenAPIValidator struct {
	router openapi3_routers.Router
}

func LoadOpenAPI(ctx context.Context, spec []byte) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(spec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func NewOpenAPIValidator(ctx context.Context, spec []byte) (*OpenAPIValidator, error) {
	doc, err := LoadOpenAPI(ctx, spec)
	if err != nil {
		return nil, err
	}
	router, err := openapi3_legacy.NewRouter(doc)
	if err != nil {
		return nil, err
	}
	return &OpenAPIValidator{router: router}, nil
}

func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := v.router.FindRoute(r)
		if err != nil {
			// Undocumented routes are left to the mux.
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			body, err = io.ReadAll(r.Body)
			if err != nil {
				if writeBodyTooLarge(w, err) {
					return
				}
				writeError(w, http.StatusBadRequest, "Failed to read request body.")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		input := &openapi3filter.RequestValidationInput{
			Request:     r,
			PathParams:  params,
			QueryParams: r.URL.Query(),
			Route:       route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		next.ServeHTTP(w, r)
	})
}
