package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
)

func (s *Server) GetWalletBalance(c *gin.Context) {
	ownerID := strings.TrimSpace(c.Param("ownerId"))
	kind, err := parseWalletKind(c.Query("kind"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	wallet, err := s.walletSvc.GetWallet(c.Request.Context(), ownerID, kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"wallet_id": wallet.ID,
		"owner_id":  wallet.OwnerID,
		"kind":      wallet.Kind,
		"balance":   wallet.Balance,
	}})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Kind       string `form:"kind"`
		Type       string `form:"type"`
		CampaignID string `form:"campaign_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	kind, err := parseWalletKind(query.Kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.walletSvc.ListTransactions(c.Request.Context(), walletdomain.ListTransactionsRequest{
		OwnerID:    strings.TrimSpace(c.Param("ownerId")),
		Kind:       kind,
		Type:       walletdomain.TransactionType(strings.ToUpper(strings.TrimSpace(query.Type))),
		CampaignID: strings.TrimSpace(query.CampaignID),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Transactions,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetWalletStats(c *gin.Context) {
	kind, err := parseWalletKind(c.Query("kind"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.walletSvc.GetStats(c.Request.Context(), strings.TrimSpace(c.Param("ownerId")), kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
