package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorflow-backend/api/responses"
	pkgAuth "github.com/angelmondragon/vendorflow-backend/pkg/auth"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// caller identity. Claims are trusted as issued; no credential lookup happens.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:   claims.UserID,
				Roles:    claims.Roles,
				VendorID: claims.VendorID,
			})

			if logg != nil {
				actor := logger.Actor{UserID: claims.UserID.String()}
				if claims.VendorID != nil {
					actor.VendorID = claims.VendorID.String()
				}
				for _, role := range claims.Roles {
					actor.Roles = append(actor.Roles, string(role))
				}
				ctx = logg.WithActor(ctx, actor)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
