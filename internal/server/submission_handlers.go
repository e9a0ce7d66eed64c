package server

import (
	"intake/internal/middleware"
	"intake/internal/models"
	"intake/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CreateSubmission handles POST /api/feedback
func (s *Server) CreateSubmission(c *fiber.Ctx) error {
	var req struct {
		Actor   string `json:"actor"`
		Theme   string `json:"theme"`
		Email   string `json:"email"`
		Company string `json:"company"`
		Person  string `json:"person"`
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	identity := models.Identity{}
	if uid, ok := c.Locals("userID").(uint); ok {
		identity.UserID = uid
	}

	sub, err := s.intakeService.Submit(c.UserContext(), service.SubmitInput{
		Actor:     req.Actor,
		Theme:     req.Theme,
		Email:     req.Email,
		Company:   req.Company,
		Person:    req.Person,
		Message:   req.Message,
		ClientIP:  middleware.ClientIP(c),
		UserAgent: c.Get("User-Agent"),
		Identity:  identity,
	})
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     sub.ID,
		"status": "success",
	})
}

// IssueFormToken handles GET /api/feedback/token. It hands browser
// clients a one-shot token to embed in the submission form.
func (s *Server) IssueFormToken(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"token": uuid.New().String(),
	})
}
