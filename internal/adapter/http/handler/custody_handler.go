package handler

import (
	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// CustodyHandler handles deposits and withdrawals.
type CustodyHandler struct {
	custodySvc ports.CustodyService
	vaultSvc   ports.VaultService
}

// NewCustodyHandler creates a new CustodyHandler.
func NewCustodyHandler(custodySvc ports.CustodyService, vaultSvc ports.VaultService) *CustodyHandler {
	return &CustodyHandler{custodySvc: custodySvc, vaultSvc: vaultSvc}
}

// Deposit handles POST /api/v1/vaults/:name/deposit.
func (h *CustodyHandler) Deposit(c *gin.Context) {
	investor, ok := caller(c)
	if !ok {
		return
	}
	name, ok := vaultName(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := h.custodySvc.Deposit(c.Request.Context(), ports.DepositRequest{
		VaultName:   name,
		Investor:    investor,
		Amount:      *req.Amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDepositReceiptResponse(receipt, h.assetOf(c, name)))
}

// Withdraw handles POST /api/v1/vaults/:name/withdraw.
func (h *CustodyHandler) Withdraw(c *gin.Context) {
	investor, ok := caller(c)
	if !ok {
		return
	}
	name, ok := vaultName(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := h.custodySvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		VaultName:   name,
		Caller:      investor,
		Amount:      *req.Amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWithdrawReceiptResponse(receipt, h.assetOf(c, name)))
}

// assetOf looks up the vault's asset for display. The operation has
// already committed, so a failed lookup only drops the symbol and decimals.
func (h *CustodyHandler) assetOf(c *gin.Context, name string) domain.Asset {
	v, err := h.vaultSvc.GetVault(c.Request.Context(), name)
	if err != nil {
		return domain.Asset{}
	}
	return h.vaultSvc.Asset(v.Asset)
}
