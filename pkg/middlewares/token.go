package middlewares

import (
	t_token "video_ingest_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenOwnerID get owner form token, set c.locals name
	TokenOwnerID = "OwnerID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validates JWT from Authorization header, query or cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := t_token.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			tokenStr = c.Query(QueryToken)
		}

		// 如果查詢參數中沒有 token，則嘗試從 Cookie 中獲取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenOwnerID, claims.OwnerID)
		c.Locals(TokenRole, claims.Role)

		return c.Next()
	}
}

// OwnerID read owner set by JWTMiddleware
func OwnerID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenOwnerID).(string)
	return id
}
