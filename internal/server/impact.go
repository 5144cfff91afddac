package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	"gorm.io/gorm"
)

func (s *Server) ListPurchaseHistory(c *gin.Context) {
	var rows []ledgerdomain.HistoryRow
	err := s.db.WithContext(c.Request.Context()).
		Where("user_id = ?", currentUserID(c)).
		Order("purchase_date DESC").
		Limit(100).
		Find(&rows).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": rows})
}

func (s *Server) GetCreditAccount(c *gin.Context) {
	userID := currentUserID(c)

	var account ledgerdomain.CreditAccount
	err := s.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No credits yet reads as a zero balance, not an error.
			c.JSON(http.StatusOK, ledgerdomain.CreditAccount{UserID: userID})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

type contributionSummary struct {
	CauseSlug string `json:"cause_slug"`
	Total     int64  `json:"total"`
}

func (s *Server) ListContributions(c *gin.Context) {
	var summaries []contributionSummary
	err := s.db.WithContext(c.Request.Context()).
		Raw(`SELECT cause_slug, SUM(amount) AS total
		     FROM charity_contributions
		     WHERE user_id = ?
		     GROUP BY cause_slug
		     ORDER BY total DESC`, currentUserID(c)).
		Scan(&summaries).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contributions": summaries})
}
