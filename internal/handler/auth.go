package handler

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/xenking/storefront/internal/domain/auth"
)

// guestHeader carries the anonymous device id browsers generate for guest
// carts.
const guestHeader = "X-Guest-ID"

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Admin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// identity resolves the caller permissively: a valid bearer token yields a
// user identity, otherwise the guest header is used, otherwise the caller
// stays anonymous. Invalid tokens are treated as absent so public routes
// keep working with an expired session.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.Identity{GuestID: r.Header.Get(guestHeader)}

		if token := bearerToken(r); token != "" {
			if claims, err := h.parseToken(token); err == nil {
				id = auth.Identity{
					UserID: claims.UserID,
					Email:  claims.Email,
					Name:   claims.Name,
					Admin:  claims.Admin,
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// requireUser rejects requests without an authenticated user.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).Authenticated() {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests without an admin user.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		if !id.Authenticated() {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.Admin {
			writeMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) parseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
