package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleBankTransferWebhook answers 200 for every delivery. Failures are logged for manual
// review so the sender does not retry payloads that can never be processed.
func (s *Server) HandleBankTransferWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.logger(ctx).Warn("webhook body unreadable", zap.String("provider", paymentdomain.ProviderSepay), zap.Error(err))
		c.JSON(http.StatusOK, webhookResponse{Success: false, Message: "unreadable body"})
		return
	}

	result, err := s.paymentSvc.IngestWebhook(ctx, paymentdomain.ProviderSepay, payload, c.Request.Header)
	if err != nil {
		s.logger(ctx).Error("bank transfer webhook failed",
			zap.String("provider", paymentdomain.ProviderSepay),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, webhookResponse{Success: false, Message: webhookFailureMessage(err)})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{Success: true, Message: string(result.Outcome)})
}

// HandleCheckoutWebhook rejects deliveries without a valid signature before any processing.
// Verified deliveries are acknowledged even when applying them fails.
func (s *Server) HandleCheckoutWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.IngestWebhook(ctx, paymentdomain.ProviderPayOS, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, webhookResponse{Success: true, Message: string(result.Outcome)})
	case errors.Is(err, paymentdomain.ErrMissingSignature),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		AbortWithError(c, err)
	default:
		s.logger(ctx).Error("checkout webhook failed",
			zap.String("provider", paymentdomain.ProviderPayOS),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, webhookResponse{Success: false, Message: webhookFailureMessage(err)})
	}
}

func webhookFailureMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return "invalid payload"
	default:
		return "processing failed"
	}
}
