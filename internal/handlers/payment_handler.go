package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

const maxWebhookBody = 1 << 20

func (h *Handler) landingURL(outcome, reference string) string {
	target := strings.TrimRight(h.Config.URLs.LandingPageURL, "/") + "/payment/" + outcome
	if reference != "" {
		target += "?reference=" + url.QueryEscape(reference)
	}
	return target
}

// PaymentCallback handles the browser redirect back from checkout and sends
// the member to the landing page. Anything short of a confirmed success lands
// on the failed page.
func (h *Handler) PaymentCallback(requestType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dto services.CallbackDTO
		_ = c.ShouldBindQuery(&dto)

		trx, err := h.Reconciliation.HandleCallback(c.Request.Context(), dto, requestType)
		if err != nil {
			h.Log.Warn("callback not applied", zap.String("reference", dto.TxRef), zap.String("status", dto.Status), zap.Error(err))
		}
		outcome := "failed"
		if err == nil && trx != nil && trx.Status == models.TransactionSuccessful {
			outcome = "success"
		}
		c.Redirect(http.StatusFound, h.landingURL(outcome, dto.TxRef))
	}
}

// TransferCallback receives server to server transfer notifications.
func (h *Handler) TransferCallback(c *gin.Context) {
	var dto services.CallbackDTO
	if err := c.ShouldBind(&dto); err != nil {
		respondBindError(c, err)
		return
	}
	trx, err := h.Reconciliation.HandleCallback(c.Request.Context(), dto, "withdrawal_callback")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"reference": trx.Reference, "status": trx.Status}, "Callback processed"))
}

// webhookAcknowledged reports errors the gateway must not retry.
func webhookAcknowledged(err error) bool {
	kind, _ := services.Classify(err)
	switch kind {
	case services.KindValidation, services.KindNotFound, services.KindConsistency:
		return true
	}
	return false
}

func (h *Handler) FlutterwaveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondBindError(c, err)
		return
	}
	dto, ok, err := h.Webhooks.ParseWebhook(c.GetHeader("verif-hash"), body)
	if errors.Is(err, services.ErrInvalidSignature) {
		h.Log.Warn("webhook signature rejected", zap.String("ip", c.ClientIP()))
		unauthorized(c)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Event ignored"))
		return
	}

	trx, err := h.Reconciliation.HandleCallback(c.Request.Context(), dto, "webhook")
	if err != nil {
		if webhookAcknowledged(err) {
			h.Log.Info("webhook acknowledged without change", zap.String("reference", dto.TxRef), zap.Error(err))
			c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Acknowledged"))
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"reference": trx.Reference, "status": trx.Status}, "Webhook processed"))
}
