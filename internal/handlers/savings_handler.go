package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) CreateGoal(c *gin.Context) {
	var req services.CreateGoalDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	plan, err := h.Savings.CreateGoal(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(plan, "Savings plan created"))
}

func (h *Handler) bindFunding(c *gin.Context) (services.FundSavingsDTO, bool) {
	var req services.FundSavingsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return req, false
	}
	req.UserID = userID(c)
	req.PlanUID = c.Param("uid")
	return req, true
}

func (h *Handler) FundGoal(c *gin.Context) {
	req, ok := h.bindFunding(c)
	if !ok {
		return
	}
	out, err := h.Savings.FundGoal(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, "Savings funding initiated"))
}

func (h *Handler) ListGoals(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	completed, _ := strconv.ParseBool(c.Query("completed"))
	list, total, err := h.Savings.ListGoals(c.Request.Context(), userID(c), completed, common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) CreateLocked(c *gin.Context) {
	var req services.CreateLockedDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID(c)

	plan, err := h.Savings.CreateLocked(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(plan, "Locked savings plan created"))
}

func (h *Handler) FundLocked(c *gin.Context) {
	req, ok := h.bindFunding(c)
	if !ok {
		return
	}
	out, err := h.Savings.FundLocked(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(out, "Savings funding initiated"))
}

func (h *Handler) ListLocked(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	ready, _ := strconv.ParseBool(c.Query("ready"))
	list, total, err := h.Savings.ListLocked(c.Request.Context(), userID(c), ready, common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) SavingsStats(c *gin.Context) {
	stats, err := h.Savings.Stats(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(stats, "Savings stats retrieved"))
}
