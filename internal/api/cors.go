package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// The status API is read-only, so only GET and preflight are advertised.
const (
	corsAllowMethods = "GET, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, Accept, Last-Event-ID"
	corsMaxAge       = "86400"
)

func setCORSHeaders(set func(name, value string), origin string) {
	set("Access-Control-Allow-Origin", origin)
	set("Access-Control-Allow-Methods", corsAllowMethods)
	set("Access-Control-Allow-Headers", corsAllowHeaders)
	set("Access-Control-Max-Age", corsMaxAge)
}

// corsMiddleware adds CORS headers to every Huma response.
func corsMiddleware(origin string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		setCORSHeaders(ctx.SetHeader, origin)
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// handlePreflight answers OPTIONS for any path. Huma only sees requests that
// match a registered operation, so preflight has to be handled on the mux.
func handlePreflight(mux *http.ServeMux, origin string) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		setCORSHeaders(w.Header().Set, origin)
		w.WriteHeader(http.StatusNoContent)
	})
}
