package handler

import (
	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/adapter/http/middleware"
	"custody-vault/internal/core/domain"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// caller returns the authenticated identity or writes an error response.
func caller(c *gin.Context) (domain.PublicKey, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidIdentity())
		return domain.PublicKey{}, false
	}
	return id, true
}

// bindJSON binds and sanitizes the request body into req.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// vaultName returns the :name path parameter, rejecting names that can
// never be derived.
func vaultName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !dto.ValidVaultName(name) {
		response.Error(c, apperror.ErrInvalidVaultName())
		return "", false
	}
	return name, true
}
