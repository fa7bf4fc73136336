package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/service"
	"github.com/storyloom/api/pkg/response"
)

type TopicsHandler struct {
	service   *service.TopicsService
	validator *validator.Validate
}

func NewTopicsHandler(svc *service.TopicsService, v *validator.Validate) *TopicsHandler {
	return &TopicsHandler{
		service:   svc,
		validator: v,
	}
}

// Suggest handles POST /api/topics/suggest
// @Summary      Suggest topics
// @Description  Suggest story topics tailored to the reader's age and gender
// @Tags         Topics
// @Accept       json
// @Produce      json
// @Param        request body model.TopicSuggestRequest true "Suggestion request"
// @Success      200 {object} model.TopicSuggestResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/topics/suggest [post]
func (h *TopicsHandler) Suggest(c *fiber.Ctx) error {
	var req model.TopicSuggestRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Suggest(c.Context(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return err.Error()
}
