package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) ReferralProfile(c *gin.Context) {
	profile, err := h.Bonus.ReferralProfile(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(profile, "Referral profile retrieved"))
}

func referralFilter(c *gin.Context) services.ReferralFilter {
	codeID, _ := strconv.ParseUint(c.Query("codeId"), 10, 64)
	return services.ReferralFilter{
		Search: c.Query("search"),
		Code:   c.Query("code"),
		CodeID: uint(codeID),
	}
}

func (h *Handler) ListReferrals(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	list, total, err := h.Bonus.ListReferrals(c.Request.Context(), userID(c), referralFilter(c), common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) WithdrawReferralBonus(c *gin.Context) {
	trx, err := h.Bonus.WithdrawReferralBonus(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Referral bonus moved to your wallet"))
}

func (h *Handler) BecomeAffiliate(c *gin.Context) {
	if err := h.Bonus.BecomeAffiliate(c.Request.Context(), userID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.AffiliateProfile(c)
}

func (h *Handler) AffiliateProfile(c *gin.Context) {
	profile, err := h.Bonus.AffiliateProfile(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"profile":        profile,
		"referral_count": profile.ReferralCount(),
		"referral_bonus": profile.ReferralBonus(),
	}, "Affiliate profile retrieved"))
}

func (h *Handler) AddAffiliateCode(c *gin.Context) {
	code, err := h.Bonus.AddAffiliateCode(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewSuccessResponse(code, "Referral code created"))
}

func (h *Handler) ListAffiliateReferrals(c *gin.Context) {
	page, limit := common.ParsePage(c.Query("page"), c.Query("limit"))
	list, total, err := h.Bonus.ListAffiliateReferrals(c.Request.Context(), userID(c), referralFilter(c), common.Offset(page, limit), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(list, total, page, limit, ""))
}

func (h *Handler) WithdrawAffiliateBonus(c *gin.Context) {
	trx, err := h.Bonus.WithdrawAffiliateBonus(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Affiliate bonus moved to your wallet"))
}
