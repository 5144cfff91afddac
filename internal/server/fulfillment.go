package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProcessPendingOrders sweeps completed purchases that still lack their
// ledger application or gift card. It backstops the background worker after
// crashes or queue overflow and recovers ledger applications that failed
// after the webhook was acknowledged.
func (s *Server) ProcessPendingOrders(c *gin.Context) {
	reapplied, err := s.ledgerSvc.ReapplyPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.fulfillmentSvc.ProcessPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ledger_reapplied": reapplied,
		"fulfilled":        result.Fulfilled,
		"failed":           result.Failed,
		"retryable":        result.Retryable,
	})
}
