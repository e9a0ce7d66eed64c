package server

import (
	"bytes"
	"fmt"
	"time"

	"intake/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListSubmissions handles GET /api/admin/feedback
func (s *Server) ListSubmissions(c *fiber.Ctx) error {
	filter := parseSubmissionFilter(c, 20)

	subs, total, err := s.adminService.List(c.UserContext(), callerIdentity(c), filter)
	if err != nil {
		return models.RespondError(c, err)
	}

	return c.JSON(fiber.Map{
		"submissions": subs,
		"total":       total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// GetSubmission handles GET /api/admin/feedback/:id
func (s *Server) GetSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	sub, err := s.adminService.Get(c.UserContext(), callerIdentity(c), id)
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(sub)
}

// UpdateSubmissionStatus handles PATCH /api/admin/feedback/:id. The
// status field is the only mutable part of a stored submission.
func (s *Server) UpdateSubmissionStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sub, err := s.adminService.UpdateStatus(c.UserContext(), callerIdentity(c), id, models.Status(req.Status))
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(sub)
}

// DeleteSubmission handles DELETE /api/admin/feedback/:id
func (s *Server) DeleteSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	if err := s.adminService.Delete(c.UserContext(), callerIdentity(c), id); err != nil {
		return models.RespondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SubmissionStats handles GET /api/admin/feedback/stats
func (s *Server) SubmissionStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(c.UserContext(), callerIdentity(c))
	if err != nil {
		return models.RespondError(c, err)
	}
	return c.JSON(stats)
}

// ExportSubmissions handles GET /api/admin/feedback/export and returns
// matching submissions as a CSV attachment.
func (s *Server) ExportSubmissions(c *fiber.Ctx) error {
	filter := parseSubmissionFilter(c, 0)
	filter.Limit = 0
	filter.Offset = 0

	var buf bytes.Buffer
	if err := s.adminService.ExportCSV(c.UserContext(), callerIdentity(c), filter, &buf); err != nil {
		return models.RespondError(c, err)
	}

	filename := fmt.Sprintf("feedback_%s.csv", time.Now().UTC().Format("20060102T150405"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}
