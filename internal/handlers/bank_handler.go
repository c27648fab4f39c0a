package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) ListBanks(c *gin.Context) {
	banks, err := h.Banks.ListBanks(c.Request.Context(), c.Query("country"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(banks, "Banks retrieved"))
}

func (h *Handler) LinkBankAccount(c *gin.Context) {
	var req services.LinkBankAccountDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	account, err := h.Banks.LinkBankAccount(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(account, "Bank account linked"))
}

func (h *Handler) ListBankAccounts(c *gin.Context) {
	accounts, err := h.Banks.ListAccounts(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(accounts, "Bank accounts retrieved"))
}

func (h *Handler) DeactivateBankAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid bank account id", nil, http.StatusBadRequest))
		return
	}
	if err := h.Banks.DeactivateAccount(c.Request.Context(), userID(c), uint(id)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Bank account removed"))
}
