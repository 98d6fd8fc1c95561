package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	param        string // path parameter used as resource id
}

var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/login":            {domain.AuditActionLogin, "session", ""},
	"POST /api/v1/vaults":                {domain.AuditActionCreateVault, "vault", ""},
	"POST /api/v1/vaults/:name/deposit":  {domain.AuditActionDeposit, "vault", "name"},
	"POST /api/v1/vaults/:name/withdraw": {domain.AuditActionWithdraw, "vault", "name"},
	"POST /api/v1/custody/accounts":      {domain.AuditActionOpenAccount, "custody_account", ""},
	"POST /api/v1/custody/faucet":        {domain.AuditActionFaucet, "custody_account", ""},
}

// AuditLog creates an audit middleware that logs successful write operations.
// Routes are matched on the registered pattern, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var identity *domain.PublicKey
		if id, ok := Identity(c); ok {
			identity = &id
		}
		var resourceID string
		if route.param != "" {
			resourceID = c.Param(route.param)
		}

		details, _ := json.Marshal(map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Identity:     identity,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
