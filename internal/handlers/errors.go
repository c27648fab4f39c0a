package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ledger-service/internal/services"
	"ledger-service/pkg/common"
)

func (h *Handler) respondError(c *gin.Context, err error) {
	kind, msg := services.Classify(err)
	status := services.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Uint("user_id", userID(c)), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, common.NewErrorResponse(msg, nil, status).WithCode(string(kind)))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(bindMessage(err), nil, http.StatusBadRequest).WithCode(string(services.KindValidation)))
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "money":
			return fmt.Sprintf("%s must have at most two decimal places", fe.Field())
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	return "Invalid request body"
}
