package middleware

import (
	"net/http"

	"github.com/angelmondragon/vendorflow-backend/pkg/requestmeta"
)

// RequestMeta records the caller address and user agent for audit entries.
func RequestMeta() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestmeta.With(r.Context(), requestmeta.FromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
