package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

// RegisterUser mirrors a user created by the identity service and opens their wallet.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req services.RegisterUserDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, wallet, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(gin.H{"user": user, "wallet": wallet}, "User registered"))
}

type kycRequest struct {
	Status models.KYCStatus `json:"status" binding:"required,oneof=approved pending rejected"`
}

func (h *Handler) SetKYCStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid user id", nil, http.StatusBadRequest))
		return
	}
	var req kycRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.Users.SetKYCStatus(c.Request.Context(), uint(id), req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "KYC status updated"))
}
