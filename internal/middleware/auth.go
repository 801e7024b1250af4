package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/repository"
	"github.com/wirechat/gateway-go/internal/util"
)

type contextKey string

const OrganizationContextKey contextKey = "organization"

func GetOrganization(ctx context.Context) *model.Organization {
	if org, ok := ctx.Value(OrganizationContextKey).(*model.Organization); ok {
		return org
	}
	return nil
}

type AuthMiddleware struct {
	orgRepo repository.OrganizationRepository
}

func NewAuthMiddleware(orgRepo repository.OrganizationRepository) *AuthMiddleware {
	return &AuthMiddleware{orgRepo: orgRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		org, err := m.orgRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if org == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OrganizationContextKey, org)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
