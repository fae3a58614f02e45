package authz

import (
	"net/http"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Require returns middleware that lets the request through only when the
// authenticated principal satisfies req. It must run after the auth
// middleware has placed the principal on the context.
//
//	r.With(gate.Require(errs, authz.Permission("write:reports"))).Post("/reports", h)
func (g *Gate) Require(errs *httputil.ErrorWriter, req Requirement) func(http.Handler) http.Handler {
	if errs == nil {
		errs = httputil.NewErrorWriter(nil, false)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := g.Authorize(ctx, requestcontext.Principal(ctx), req); err != nil {
				errs.Write(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
