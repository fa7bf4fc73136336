package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/storyloom/api/internal/middleware"
	"github.com/storyloom/api/internal/service"
	"github.com/storyloom/api/pkg/response"
)

const maxUploadSize = 10 * 1024 * 1024 // 10MB

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{
		service: svc,
	}
}

// Reference handles POST /api/upload/reference
// @Summary      Upload reference image
// @Description  Upload a protagonist reference image used to keep illustrations consistent
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Image file (PNG, JPEG, WebP; max 10MB)"
// @Success      201 {object} model.UploadReferenceResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/reference [post]
func (h *UploadHandler) Reference(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 10MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/webp": true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: PNG, JPEG, WebP", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadReference(c.Context(), middleware.GetUserID(c), f, contentType)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// ReferenceURL handles GET /api/upload/reference/:refId/url
// @Summary      Get reference image URL
// @Description  Get a short-lived signed URL for a previously uploaded reference image
// @Tags         Upload
// @Produce      json
// @Param        refId path string true "Reference ID"
// @Success      200 {object} model.ReferenceURLResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/reference/{refId}/url [get]
func (h *UploadHandler) ReferenceURL(c *fiber.Ctx) error {
	refID := c.Params("refId")
	if refID == "" {
		return response.ValidationError(c, "Reference ID is required", nil)
	}

	result, err := h.service.GetReferenceURL(c.Context(), middleware.GetUserID(c), refID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// DeleteReference handles DELETE /api/upload/reference/:refId
// @Summary      Delete reference image
// @Description  Delete a previously uploaded reference image
// @Tags         Upload
// @Produce      json
// @Param        refId path string true "Reference ID"
// @Success      204 "No Content"
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/reference/{refId} [delete]
func (h *UploadHandler) DeleteReference(c *fiber.Ctx) error {
	refID := c.Params("refId")
	if refID == "" {
		return response.ValidationError(c, "Reference ID is required", nil)
	}

	err := h.service.DeleteReference(c.Context(), middleware.GetUserID(c), refID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
