package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/user/carteira/backend/internal/auth"
	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/models"
)

// SignupRequest defines the expected JSON body for signup
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest defines the expected JSON body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse defines the JSON response for successful auth
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles user registration. New accounts always get the
// cliente role.
func Signup(c *fiber.Ctx) error {
	req := new(SignupRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	email := database.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid email is required"})
	}
	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must have at least 6 characters"})
	}

	existingUser, err := database.GetUserByEmail(c.Context(), email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error checking email")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}
	if existingUser != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error hashing password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process password"})
	}

	newUser, err := database.CreateUser(c.Context(), email, hashedPassword, strings.TrimSpace(req.Name))
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error creating user")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	token, err := auth.GenerateJWT(newUser.ID, newUser.Email, newUser.Role)
	if err != nil {
		// User exists but has no token; the client can retry via login.
		log.Error().Err(err).Str("email", email).Msg("error generating token after signup")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "User created, but failed to generate token"})
	}

	newUser.Password = ""

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Token: token,
		User:  newUser,
	})
}

// Login handles user authentication.
func Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	email := database.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password cannot be empty"})
	}

	user, err := database.GetUserByEmail(c.Context(), email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error finding user")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign in"})
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.Password) {
		// Same message for both cases, no account enumeration.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error generating token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	if err := database.TouchLastSignIn(c.Context(), user.ID); err != nil {
		// Not worth failing the login over.
		log.Warn().Err(err).Str("email", email).Msg("error recording last sign-in")
	}

	user.Password = ""

	return c.Status(fiber.StatusOK).JSON(AuthResponse{
		Token: token,
		User:  user,
	})
}
