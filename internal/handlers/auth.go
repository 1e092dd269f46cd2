package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/services"
)

const (
	localActor  = "actor"
	localClaims = "claims"
)

func bearerToken(c *fiber.Ctx) string {
	// websocket clients cannot set headers, so accept a query param too
	if token := c.Query("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// AuthMiddleware verifies the access token and loads the current user, so
// admin status is always read from the store rather than the token.
func AuthMiddleware(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		claims, err := users.Tokens().Validate(c.Context(), token, services.TokenTypeAccess)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		user, err := users.GetUser(c.Context(), claims.UserID)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals(localActor, models.ActorFor(user))
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

// AdminOnly must run after AuthMiddleware
func AdminOnly(c *fiber.Ctx) error {
	if !actor(c).IsAdmin {
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	return c.Next()
}

func RegisterHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if _, err := users.Tokens().Validate(c.Context(), token, services.TokenTypeAccess); err == nil {
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Please logout before registering a new email"})
			}
		}

		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		user, err := users.Register(c.Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"message": "Thanks for registering as " + user.Email,
			"user":    user,
		})
	}
}

func LoginHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.Username == "" || req.Password == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "username and password required"})
		}

		res, err := users.Login(c.Context(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}
}

func RefreshHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token required"})
		}

		res, err := users.Refresh(c.Context(), body.RefreshToken)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}
}

func LogoutHandler(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := c.Locals(localClaims).(services.TokenClaims)
		if err := users.Logout(c.Context(), claims); err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"message": "You have been logged out."})
	}
}
