package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// InvoiceHandler 处理发票草稿与发票 PDF 相关的请求。
type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

// NewInvoiceHandler 创建一个新的 InvoiceHandler。
func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Draft 返回聊天中累积的发票草稿，用于预填表单。
func (h *InvoiceHandler) Draft(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	draft, err := h.invoiceService.Draft(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", draft)
}

// GenerateInvoiceRequest 定义了生成发票的请求体。
type GenerateInvoiceRequest struct {
	Customer string  `json:"customer"`
	Amount   float64 `json:"amount" binding:"gte=0"`
}

// Generate 生成发票 PDF 并以附件形式返回。
func (h *InvoiceHandler) Generate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: amount must not be negative", nil)
		return
	}

	pdf, err := h.invoiceService.Generate(c.Request.Context(), user, req.Customer, req.Amount)
	if err != nil {
		log.Errorf("GenerateInvoice: failed for user %s, error: %v", user.Username, err)
		respondError(c, err)
		return
	}
	sendPDF(c, pdf)
}
