package handler

import (
	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes custody accounts to their owners.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
	vaultSvc  ports.VaultService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService, vaultSvc ports.VaultService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, vaultSvc: vaultSvc}
}

// OpenAccount handles POST /api/v1/custody/accounts.
func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	var req dto.OpenAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := domain.ParsePublicKey(req.Asset)
	if err != nil {
		response.Error(c, apperror.ErrUnknownAsset())
		return
	}

	acct, err := h.ledgerSvc.OpenAccount(c.Request.Context(), owner, asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAccountResponse(acct, h.vaultSvc.Asset(asset)))
}

// GetAccount handles GET /api/v1/custody/accounts/:asset.
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	asset, err := domain.ParsePublicKey(c.Param("asset"))
	if err != nil {
		response.Error(c, apperror.ErrUnknownAsset())
		return
	}

	acct, err := h.ledgerSvc.GetAccount(c.Request.Context(), owner, asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(acct, h.vaultSvc.Asset(asset)))
}

// Faucet handles POST /api/v1/custody/faucet.
func (h *LedgerHandler) Faucet(c *gin.Context) {
	owner, ok := caller(c)
	if !ok {
		return
	}
	var req dto.FaucetRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := domain.ParsePublicKey(req.Asset)
	if err != nil {
		response.Error(c, apperror.ErrUnknownAsset())
		return
	}

	acct, err := h.ledgerSvc.Faucet(c.Request.Context(), owner, asset, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(acct, h.vaultSvc.Asset(asset)))
}
