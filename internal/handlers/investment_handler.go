package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) CreateAsset(c *gin.Context) {
	var req services.CreateAssetDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.AuthorID = userID(c)

	asset, err := h.Investments.CreateAsset(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(asset, "Asset created"))
}

func (h *Handler) ListAssets(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	club := models.OwnerClub(c.Query("owner_club"))
	list, total, err := h.Investments.ListAssets(c.Request.Context(), club, common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) GetAsset(c *gin.Context) {
	asset, err := h.Investments.GetAsset(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(asset, "Asset retrieved"))
}

func (h *Handler) Invest(c *gin.Context) {
	var req services.InvestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	out, err := h.Investments.Invest(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, "Investment initiated"))
}

func (h *Handler) ListInvestments(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	list, total, err := h.Investments.ListMine(c.Request.Context(), userID(c), common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}
