package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"haul-dispatch/internal/dispatch-service/adapters/driver/myhttp/handle"
	"haul-dispatch/internal/dispatch-service/core/domain/model"

	"github.com/golang-jwt/jwt"
)

type AuthMiddleware struct {
	accessSecret string
}

func NewAuthMiddleware(accessSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		accessSecret: accessSecret,
	}
}

// Wrap authenticates the bearer token and, when roles are given, admits only
// those roles. The caller is available to handlers via handle.ActorFrom.
func (am *AuthMiddleware) Wrap(next http.Handler, roles ...model.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("Empty JWT-Token"))
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(am.accessSecret), nil
		})
		if err != nil || !token.Valid {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("Invalid JWT-Token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("Invalid claims"))
			return
		}

		userId, ok := claims["user_id"].(string)
		if !ok || userId == "" {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("User id not found in token"))
			return
		}

		role, ok := claims["role"].(string)
		if !ok {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("Role not found in token"))
			return
		}
		actor := model.Actor{ID: userId, Role: model.Role(role)}
		if !actor.Role.Valid() {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("Unknown role %q", role))
			return
		}

		if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
			handle.JsonError(w, http.StatusForbidden, fmt.Errorf("Role %s is not allowed here", role))
			return
		}

		next.ServeHTTP(w, r.WithContext(handle.WithActor(r.Context(), actor)))
	})
}
