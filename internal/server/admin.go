package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/domain"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultEventLimit = 50

type createWalletRequest struct {
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
}

type walletEntryRequest struct {
	Amount      int64  `json:"amount"`
	CampaignID  string `json:"campaign_id"`
	ExternalRef string `json:"external_ref"`
	Description string `json:"description"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	kind, err := parseWalletKind(req.Kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	wallet, err := s.walletSvc.CreateWallet(c.Request.Context(), strings.TrimSpace(req.OwnerID), kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditOperator(c, "wallet.create", "wallet", wallet.ID.String(), map[string]any{
		"owner_id": wallet.OwnerID,
		"kind":     wallet.Kind,
	})
	c.JSON(http.StatusCreated, gin.H{"data": wallet})
}

// GetSystemWallet reports the wallet that holds unattributed money.
func (s *Server) GetSystemWallet(c *gin.Context) {
	owner := strings.TrimSpace(s.cfg.Wallet.SystemOwnerID)
	if owner == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	stats, err := s.walletSvc.GetStats(c.Request.Context(), owner, walletdomain.WalletKindAdmin)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"owner_id": owner,
		"kind":     walletdomain.WalletKindAdmin,
		"stats":    stats,
	}})
}

func (s *Server) CreateWithdrawal(c *gin.Context) {
	wallet, req, campaignID, ok := s.bindWalletEntry(c)
	if !ok {
		return
	}
	if req.Amount <= 0 {
		AbortWithError(c, walletdomain.ErrInvalidAmount)
		return
	}

	entry, err := s.walletSvc.Debit(c.Request.Context(), walletdomain.DebitRequest{
		OwnerID:     wallet.OwnerID,
		Kind:        wallet.Kind,
		Amount:      decimal.NewFromInt(req.Amount),
		Type:        walletdomain.TransactionTypeWithdrawal,
		CampaignID:  campaignID,
		ExternalRef: strings.TrimSpace(req.ExternalRef),
		Description: strings.TrimSpace(req.Description),
		Metadata:    s.operatorMetadata(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditOperator(c, "wallet.withdraw", "wallet", wallet.ID.String(), map[string]any{
		"wallet_transaction_id": entry.ID.String(),
		"amount":                entry.Amount.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

// CreateAdjustment credits a positive amount and debits a negative one.
func (s *Server) CreateAdjustment(c *gin.Context) {
	wallet, req, campaignID, ok := s.bindWalletEntry(c)
	if !ok {
		return
	}
	if req.Amount == 0 {
		AbortWithError(c, walletdomain.ErrInvalidAmount)
		return
	}

	ctx := c.Request.Context()
	var (
		entry *walletdomain.Transaction
		err   error
	)
	if req.Amount > 0 {
		entry, err = s.walletSvc.Credit(ctx, walletdomain.CreditRequest{
			OwnerID:     wallet.OwnerID,
			Kind:        wallet.Kind,
			Amount:      decimal.NewFromInt(req.Amount),
			Type:        walletdomain.TransactionTypeAdminAdjustment,
			CampaignID:  campaignID,
			ExternalRef: strings.TrimSpace(req.ExternalRef),
			Description: strings.TrimSpace(req.Description),
			Metadata:    s.operatorMetadata(c),
		})
	} else {
		entry, err = s.walletSvc.Debit(ctx, walletdomain.DebitRequest{
			OwnerID:     wallet.OwnerID,
			Kind:        wallet.Kind,
			Amount:      decimal.NewFromInt(-req.Amount),
			Type:        walletdomain.TransactionTypeAdminAdjustment,
			CampaignID:  campaignID,
			ExternalRef: strings.TrimSpace(req.ExternalRef),
			Description: strings.TrimSpace(req.Description),
			Metadata:    s.operatorMetadata(c),
		})
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditOperator(c, "wallet.adjust", "wallet", wallet.ID.String(), map[string]any{
		"wallet_transaction_id": entry.ID.String(),
		"amount":                req.Amount,
	})
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) OverridePayment(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	operator, _ := operatorFromContext(c)
	pt, err := s.donationSvc.OverrideFailed(c.Request.Context(), id, operator.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditOperator(c, "payment.override", "payment_transaction", pt.ID.String(), map[string]any{
		"order_code": strconv.FormatInt(pt.OrderCode, 10),
	})
	c.JSON(http.StatusOK, gin.H{"data": pt})
}

func (s *Server) RefundPayment(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		AbortWithError(c, newValidationError("reason", "required", "reason is required"))
		return
	}

	operator, _ := operatorFromContext(c)
	pt, err := s.donationSvc.Refund(c.Request.Context(), id, operator.Name, reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditOperator(c, "payment.refund", "payment_transaction", pt.ID.String(), map[string]any{
		"order_code": strconv.FormatInt(pt.OrderCode, 10),
		"reason":     reason,
	})
	c.JSON(http.StatusOK, gin.H{"data": pt})
}

// ListWebhookEvents lists logged gateway notifications, newest first.
func (s *Server) ListWebhookEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	events, err := s.router.ListEvents(c.Request.Context(), paymentdomain.EventFilter{
		Provider: strings.ToLower(strings.TrimSpace(c.Query("provider"))),
		Outcome:  paymentdomain.Outcome(strings.ToLower(strings.TrimSpace(c.Query("outcome")))),
		Limit:    limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) bindWalletEntry(c *gin.Context) (*walletdomain.Wallet, walletEntryRequest, *snowflake.ID, bool) {
	var req walletEntryRequest
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return nil, req, nil, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return nil, req, nil, false
	}
	campaignID, err := parseOptionalSnowflakeID(req.CampaignID)
	if err != nil {
		AbortWithError(c, newValidationError("campaign_id", "invalid_campaign_id", "invalid campaign_id"))
		return nil, req, nil, false
	}

	wallet, err := s.walletSvc.GetWalletByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, req, nil, false
	}
	return wallet, req, campaignID, true
}

func (s *Server) operatorMetadata(c *gin.Context) map[string]any {
	operator, ok := operatorFromContext(c)
	if !ok {
		return nil
	}
	return map[string]any{"operator": operator.Name, "operator_role": operator.Role}
}

// auditOperator records a completed operator action. The action already committed, so a
// failed write is logged and the request still succeeds.
func (s *Server) auditOperator(c *gin.Context, action, targetType, target string, metadata map[string]any) {
	operator, ok := operatorFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s.logger(ctx).Info("operator action",
		zap.String("action", action),
		zap.String("target_id", target),
		zap.String("operator", operator.Name),
		zap.String("role", operator.Role),
	)
	if s.auditSvc == nil {
		return
	}

	entry := auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeOperator,
		ActorID:    operator.Name,
		ActorRole:  operator.Role,
		Action:     action,
		TargetType: targetType,
		TargetID:   target,
		Metadata:   metadata,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if key := c.GetString(contextOperatorSecret); key != "" {
		entry.Secrets = map[string]any{"operator_key": key}
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.logger(ctx).Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Action     string `form:"action"`
		TargetType string `form:"target_type"`
		TargetID   string `form:"target_id"`
		ActorID    string `form:"actor_id"`
		StartAt    string `form:"start_at"`
		EndAt      string `form:"end_at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := parseOptionalTime(query.StartAt)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "start_at must be RFC3339"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "end_at must be RFC3339"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: query.Pagination,
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		ActorID:    strings.TrimSpace(query.ActorID),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.AuditLogs,
		"page_info": resp.PageInfo,
	})
}
