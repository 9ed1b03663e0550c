package handler

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed docs/openapi.json
var openAPISpec []byte

//go:embed docs/index.html
var swaggerHTML string

const specPath = "/api-docs/openapi.json"

// RegisterDocsRoutes serves the OpenAPI document and a Swagger UI page.
func RegisterDocsRoutes(r gin.IRoutes) {
	r.GET(specPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openAPISpec)
	})
	r.GET("/api-docs", func(c *gin.Context) {
		html := strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", specPath)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	})
}
