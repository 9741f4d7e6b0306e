package httpadapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openAPIDocument []byte

type requestValidator struct {
	router routers.Router
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &requestValidator{router: router}, nil
}

// middleware validates parameters and JSON bodies of declared operations.
// Undeclared routes and methods pass through to the mux.
func (v *requestValidator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			var routeErr *routers.RouteError
			if errors.As(err, &routeErr) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			status := http.StatusBadRequest
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, status, validationMessage(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validationMessage reports the first violation without the schema dump that
// openapi3.SchemaError.Error includes.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	hasReqErr := errors.As(err, &reqErr)

	msg := err.Error()
	var schemaErr *openapi3.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		msg = schemaErr.Reason
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			msg = strings.Join(pointer, ".") + ": " + msg
		}
	case hasReqErr:
		msg = reqErr.Reason
		if reqErr.Err != nil {
			msg = strings.TrimPrefix(msg+": "+reqErr.Err.Error(), ": ")
		}
	}
	if hasReqErr && reqErr.Parameter != nil {
		msg = fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, msg)
	}
	return "invalid request: " + msg
}
