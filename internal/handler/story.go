package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/internal/middleware"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/service"
	"github.com/storyloom/api/internal/store"
	"github.com/storyloom/api/pkg/response"
)

type StoryHandler struct {
	service   *service.StoryService
	validator *validator.Validate
}

func NewStoryHandler(svc *service.StoryService, v *validator.Validate) *StoryHandler {
	return &StoryHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/stories
// @Summary      Create story
// @Description  Queue generation of a new illustrated, narrated story
// @Tags         Stories
// @Accept       json
// @Produce      json
// @Param        request body model.StoryCreateRequest true "Story create request"
// @Success      202 {object} model.StoryCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stories [post]
func (h *StoryHandler) Create(c *fiber.Ctx) error {
	var req model.StoryCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Create(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Get handles GET /api/stories/:storyId
// @Summary      Get story
// @Description  Get the full story document including all sections
// @Tags         Stories
// @Produce      json
// @Param        storyId path string true "Story ID"
// @Success      200 {object} model.Story
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stories/{storyId} [get]
func (h *StoryHandler) Get(c *fiber.Ctx) error {
	storyID := c.Params("storyId")
	if storyID == "" {
		return response.ValidationError(c, "Story ID is required", nil)
	}

	story, err := h.service.Get(c.Context(), middleware.GetUserID(c), storyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Story not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, story)
}

// Status handles GET /api/stories/:storyId/status
// @Summary      Get story status
// @Description  Get the current pipeline status of a story
// @Tags         Stories
// @Produce      json
// @Param        storyId path string true "Story ID"
// @Success      200 {object} model.StoryStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stories/{storyId}/status [get]
func (h *StoryHandler) Status(c *fiber.Ctx) error {
	storyID := c.Params("storyId")
	if storyID == "" {
		return response.ValidationError(c, "Story ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), middleware.GetUserID(c), storyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Story not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /api/stories/:storyId
// @Summary      Delete story
// @Description  Delete a story and its generated assets
// @Tags         Stories
// @Produce      json
// @Param        storyId path string true "Story ID"
// @Success      200 {object} model.StoryDeleteResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stories/{storyId} [delete]
func (h *StoryHandler) Delete(c *fiber.Ctx) error {
	storyID := c.Params("storyId")
	if storyID == "" {
		return response.ValidationError(c, "Story ID is required", nil)
	}

	result, err := h.service.Delete(c.Context(), middleware.GetUserID(c), storyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Story not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
