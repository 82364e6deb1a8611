// Package middleware provides authentication, admission and observability middleware for the application.
package middleware

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocal is the Fiber locals key holding the authenticated owner id.
const UserIDLocal = "userID"

// AuthRequired returns a middleware that enforces a valid HS256 bearer token
// and stores its numeric subject as the caller's owner id.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
				"code":  "UNAUTHORIZED",
			})
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  "UNAUTHORIZED",
			})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
				"code":  "UNAUTHORIZED",
			})
		}

		// Subject claim per RFC 7519
		subStr, ok := claims["sub"].(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token structure - missing subject",
				"code":  "UNAUTHORIZED",
			})
		}

		userIDVal, err := strconv.ParseUint(subStr, 10, 32)
		if err != nil || userIDVal == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid user ID in token",
				"code":  "UNAUTHORIZED",
			})
		}

		c.Locals(UserIDLocal, uint(userIDVal))
		return c.Next()
	}
}

// JobTriggerAuth guards the periodic job endpoints with a shared secret sent
// as a bearer token. The comparison is constant time.
func JobTriggerAuth(secret string) fiber.Handler {
	expected := []byte(secret)
	return func(c *fiber.Ctx) error {
		got, ok := bearerToken(c)
		if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid job trigger credentials",
				"code":  "UNAUTHORIZED",
			})
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
