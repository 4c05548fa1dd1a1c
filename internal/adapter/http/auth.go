package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// AdminAuth returns an operation middleware enforcing bearer-token auth for
// admin routes. With no key configured every admin call fails with a 500:
// an unset key must read as a deployment error, never as an open endpoint.
func AdminAuth(api huma.API, apiKey string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if apiKey == "" {
			huma.WriteErr(api, ctx, http.StatusInternalServerError, "admin API key not configured")
			return
		}

		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		next(ctx)
	}
}
