package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/institute-compass-api/internal/middleware"
	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/response"
)

func identityFromContext(c *gin.Context) *models.Identity {
	return middleware.IdentityFrom(c)
}

// requireIdentity writes a 401 when the route was mounted without authentication.
func requireIdentity(c *gin.Context) (*models.Identity, bool) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return identity, true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// bindJSON decodes the body into dest, answering 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

// idParam reads a uuid path parameter. Anything that cannot name a row answers 404.
func idParam(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "resource not found"))
		return "", false
	}
	return raw, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return models.NormalizePage(page, size)
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string) (*models.Date, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a YYYY-MM-DD date")
	}
	return &d, nil
}

func respondListed(c *gin.Context, data interface{}, hit bool) {
	middleware.MarkCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, nil, middleware.Meta(c))
}
