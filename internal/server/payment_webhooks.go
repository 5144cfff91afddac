package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
	"github.com/smallbiznis/giftpact/internal/payment/stripe"
)

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	if provider != stripe.Provider {
		AbortWithError(c, ErrNotFound)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = stripe.VerifySignature(payload, c.GetHeader("Stripe-Signature"), s.cfg.StripeWebhookSecret, time.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	err = s.paymentSvc.ProcessEvent(c.Request.Context(), event, payload)
	if err != nil {
		// Duplicates and unhandled types are acknowledged so the provider
		// stops redelivering them.
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) || errors.Is(err, paymentdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
