package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.Wallets.ByUser(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(wallet, "Wallet retrieved"))
}

func (h *Handler) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	wallet, err := h.Wallets.ByUser(ctx, userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	filter := services.TransactionFilter{
		Type:   models.TransactionType(c.Query("type")),
		Status: models.TransactionStatus(c.Query("status")),
	}
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	list, total, err := h.Transactions.List(ctx, wallet.ID, filter, common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

// GetTransaction only returns transactions on the caller's own wallet.
func (h *Handler) GetTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	wallet, err := h.Wallets.ByUser(ctx, userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	trx, err := h.Transactions.ByReference(ctx, c.Param("reference"))
	if err == nil && trx.WalletID != wallet.ID {
		err = services.ErrTransactionNotFound
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction retrieved"))
}

func (h *Handler) TopUp(c *gin.Context) {
	var req services.TopUpDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	out, err := h.Deposits.TopUp(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, "Proceed to payment"))
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req services.WithdrawRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	out, err := h.Withdrawals.RequestWithdrawal(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, "Withdrawal request received"))
}

func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	list, total, err := h.Withdrawals.List(c.Request.Context(), userID(c), common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) PayMembership(c *gin.Context) {
	var req services.PayMembershipDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	out, err := h.Membership.Pay(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := "Membership fee paid"
	if out.Link != "" {
		message = "Proceed to payment"
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, message))
}
