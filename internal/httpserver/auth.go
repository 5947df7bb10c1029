package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsContextKey = "auth_claims"
	bearerPrefix     = "Bearer "

	roleSuperAdmin = "super_admin"
	roleAdmin      = "admin"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// principal is the authenticated caller decoded from a bearer token.
type principal struct {
	Subject  string
	Role     string
	VenueIDs []string
}

// canManageVenue reports whether the caller may administer bookings for the
// given venue. Super admins manage everything; admins only the venues listed
// in their token.
func (caller principal) canManageVenue(venueID string) bool {
	if caller.Role == roleSuperAdmin {
		return true
	}
	if caller.Role != roleAdmin {
		return false
	}
	for _, owned := range caller.VenueIDs {
		if owned == venueID {
			return true
		}
	}
	return false
}

// requireAuth rejects requests without a valid bearer token and stores the
// decoded principal in the gin context.
func requireAuth(signingKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		caller, ok := parseBearer(ctx, signingKey)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing or invalid bearer token"))
			return
		}
		ctx.Set(claimsContextKey, caller)
		ctx.Next()
	}
}

// optionalAuth decodes a bearer token when present but lets anonymous
// requests through. Guests book without an account.
func optionalAuth(signingKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if caller, ok := parseBearer(ctx, signingKey); ok {
			ctx.Set(claimsContextKey, caller)
		}
		ctx.Next()
	}
}

func parseBearer(ctx *gin.Context, signingKey string) (principal, bool) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return principal{}, false
	}
	raw := strings.TrimPrefix(header, bearerPrefix)
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return []byte(signingKey), nil
	})
	if err != nil || !token.Valid {
		return principal{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return principal{}, false
	}
	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	var venueIDs []string
	if rawIDs, ok := claims["venue_ids"].([]interface{}); ok {
		for _, rawID := range rawIDs {
			if venueID, ok := rawID.(string); ok {
				venueIDs = append(venueIDs, venueID)
			}
		}
	}
	if subject == "" {
		return principal{}, false
	}
	return principal{Subject: subject, Role: role, VenueIDs: venueIDs}, true
}

func callerFrom(ctx *gin.Context) (principal, bool) {
	value, ok := ctx.Get(claimsContextKey)
	if !ok {
		return principal{}, false
	}
	caller, ok := value.(principal)
	return caller, ok
}
