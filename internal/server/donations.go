package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/pdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const receiptDateLayout = "02/01/2006 15:04"

var receiptZone = time.FixedZone("ICT", 7*60*60)

type createDonationRequest struct {
	CampaignID string `json:"campaign_id"`
	Amount     int64  `json:"amount"`
	DonorID    string `json:"donor_id"`
	DonorName  string `json:"donor_name"`
	Anonymous  bool   `json:"is_anonymous"`
}

func (s *Server) CreateDonation(c *gin.Context) {
	var req createDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.CampaignID) == "" {
		AbortWithError(c, newValidationError("campaign_id", "required", "campaign_id is required"))
		return
	}

	resp, err := s.donationSvc.CreateDonation(c.Request.Context(), donationdomain.CreateDonationRequest{
		CampaignID: strings.TrimSpace(req.CampaignID),
		Amount:     req.Amount,
		DonorID:    strings.TrimSpace(req.DonorID),
		DonorName:  strings.TrimSpace(req.DonorName),
		Anonymous:  req.Anonymous,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetDonation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.donationSvc.GetDonation(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetDonationReceipt renders a PDF receipt for a donation that has been paid.
func (s *Server) GetDonationReceipt(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	ctx := c.Request.Context()
	detail, err := s.donationSvc.GetDonation(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paid := settledTransaction(detail.Transactions)
	if paid == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	title := ""
	if campaign, err := s.campaignSvc.GetCampaign(ctx, detail.Donation.CampaignID); err == nil {
		title = campaign.Title
	} else {
		s.logger(ctx).Warn("receipt campaign lookup failed",
			zap.String("campaign_id", detail.Donation.CampaignID.String()),
			zap.Error(err),
		)
	}

	doc, err := s.receipts.GenerateReceipt(ctx, buildReceipt(detail.Donation, paid, title))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if doc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%d.pdf"`, paid.OrderCode))
	c.Data(http.StatusOK, "application/pdf", body)
}

func (s *Server) GetPaymentStatus(c *gin.Context) {
	orderCode, err := parseOrderCode(c.Param("orderCode"))
	if err != nil {
		AbortWithError(c, newValidationError("order_code", "invalid_order_code", "invalid order code"))
		return
	}

	pt, err := s.donationSvc.GetPaymentStatus(c.Request.Context(), orderCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"order_code":      fmt.Sprint(pt.OrderCode),
		"status":          pt.Status,
		"amount":          pt.Amount,
		"received_amount": pt.ReceivedAmount,
		"error_code":      pt.ErrorCode,
		"paid_at":         pt.PaidAt,
	}})
}

func settledTransaction(items []*donationdomain.PaymentTransaction) *donationdomain.PaymentTransaction {
	for _, pt := range items {
		if pt != nil && pt.Status == donationdomain.StatusSuccess {
			return pt
		}
	}
	return nil
}

func buildReceipt(d *donationdomain.Donation, pt *donationdomain.PaymentTransaction, campaignTitle string) pdf.ReceiptData {
	donor := "Anonymous"
	if !d.IsAnonymous && d.DonorName != nil && strings.TrimSpace(*d.DonorName) != "" {
		donor = strings.TrimSpace(*d.DonorName)
	}
	paidAt := pt.UpdatedAt
	if pt.PaidAt != nil {
		paidAt = *pt.PaidAt
	}
	reference := ""
	if pt.ExternalRef != nil {
		reference = *pt.ExternalRef
	}
	return pdf.ReceiptData{
		ReceiptNumber: fmt.Sprintf("FF-%d", pt.OrderCode),
		DonationID:    d.ID.String(),
		CampaignTitle: campaignTitle,
		DonorName:     donor,
		OrderCode:     fmt.Sprint(pt.OrderCode),
		Gateway:       strings.ToUpper(pt.Gateway),
		DatePaid:      paidAt.In(receiptZone).Format(receiptDateLayout),
		Amount:        formatVND(pt.ReceivedAmount),
		PayerAccount:  pt.CounterAccountName,
		PayerBank:     pt.CounterBankName,
		Reference:     reference,
	}
}

// formatVND renders an amount with dot thousands separators, e.g. 1.250.000 ₫.
func formatVND(amount decimal.Decimal) string {
	digits := amount.Abs().Round(0).String()
	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteString(" ₫")
	return b.String()
}
