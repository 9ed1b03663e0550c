package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unitstay/service-booking/internal/platform/apperr"
)

// Page is the envelope for paginated list responses.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Success writes data as the whole 200 response body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Paginated writes a page of items.
func Paginated[T any](c *gin.Context, items []T, total int64, page, limit int) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Page[T]{Items: items, Total: total, Page: page, Limit: limit})
}

// Rejected writes a business rejection: status 400 with the bare message string as body.
func Rejected(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, message)
}

// Unprocessable writes a validation fault.
func Unprocessable(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": message})
}

// NotFound writes a 404 with the given message.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"message": message})
}

// Error maps a fault to its HTTP status. Unknown errors become 500 and are attached
// to the gin context so the logging middleware records them.
func Error(c *gin.Context, err error) {
	var (
		validationErr *apperr.ValidationError
		notFoundErr   *apperr.NotFoundError
		conflictErr   *apperr.ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		Unprocessable(c, validationErr.Message)
	case errors.As(err, &notFoundErr):
		NotFound(c, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Message})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
