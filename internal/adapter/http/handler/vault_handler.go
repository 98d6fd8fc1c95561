package handler

import (
	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// VaultHandler serves the vault registry and its read models.
type VaultHandler struct {
	vaultSvc ports.VaultService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaultSvc ports.VaultService) *VaultHandler {
	return &VaultHandler{vaultSvc: vaultSvc}
}

// Create handles POST /api/v1/vaults. The signer becomes the manager.
func (h *VaultHandler) Create(c *gin.Context) {
	manager, ok := caller(c)
	if !ok {
		return
	}
	var req dto.CreateVaultRequest
	if !bindJSON(c, &req) {
		return
	}

	in := ports.CreateVaultRequest{Name: req.Name, Manager: manager}
	if req.Asset != nil {
		asset, err := domain.ParsePublicKey(*req.Asset)
		if err != nil {
			response.Error(c, apperror.ErrUnknownAsset())
			return
		}
		in.Asset = &asset
	}

	v, err := h.vaultSvc.CreateVault(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewVaultResponse(v, h.vaultSvc.Asset(v.Asset)))
}

// Get handles GET /api/v1/vaults/:name.
func (h *VaultHandler) Get(c *gin.Context) {
	name, ok := vaultName(c)
	if !ok {
		return
	}
	v, err := h.vaultSvc.GetVault(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewVaultResponse(v, h.vaultSvc.Asset(v.Asset)))
}

// ListPositions handles GET /api/v1/vaults/:name/positions.
func (h *VaultHandler) ListPositions(c *gin.Context) {
	name, ok := vaultName(c)
	if !ok {
		return
	}
	v, err := h.vaultSvc.GetVault(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	positions, err := h.vaultSvc.ListPositions(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}

	asset := h.vaultSvc.Asset(v.Asset)
	items := make([]dto.PositionResponse, 0, len(positions))
	for i := range positions {
		items = append(items, dto.NewPositionResponse(&positions[i], asset))
	}
	response.List(c, items, len(items))
}

// MyPosition handles GET /api/v1/vaults/:name/positions/me.
func (h *VaultHandler) MyPosition(c *gin.Context) {
	investor, ok := caller(c)
	if !ok {
		return
	}
	name, ok := vaultName(c)
	if !ok {
		return
	}
	v, err := h.vaultSvc.GetVault(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := h.vaultSvc.GetPosition(c.Request.Context(), name, investor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPositionResponse(p, h.vaultSvc.Asset(v.Asset)))
}

// ListEvents handles GET /api/v1/vaults/:name/events.
func (h *VaultHandler) ListEvents(c *gin.Context) {
	name, ok := vaultName(c)
	if !ok {
		return
	}
	var q dto.EventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	events, err := h.vaultSvc.ListEvents(c.Request.Context(), name, q.After, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		items = append(items, dto.NewEventResponse(&events[i]))
	}
	response.List(c, items, len(items))
}

// Reconcile handles GET /api/v1/vaults/:name/reconcile.
func (h *VaultHandler) Reconcile(c *gin.Context) {
	name, ok := vaultName(c)
	if !ok {
		return
	}
	r, err := h.vaultSvc.Reconcile(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewReconcileResponse(r))
}
