package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
)

// LegalHandler 处理法务/人事文书生成的请求。
type LegalHandler struct {
	legalService service.LegalService
}

// NewLegalHandler 创建一个新的 LegalHandler。
func NewLegalHandler(legalService service.LegalService) *LegalHandler {
	return &LegalHandler{legalService: legalService}
}

// Types 返回支持的文书类型。
func (h *LegalHandler) Types(c *gin.Context) {
	respond(c, http.StatusOK, "success", h.legalService.Types())
}

// GenerateLegalDocRequest 定义了生成文书的请求体，Name 为候选人或签约方名称。
type GenerateLegalDocRequest struct {
	DocType string `json:"docType" binding:"required"`
	Name    string `json:"name"`
}

// Generate 生成文书 PDF 并以附件形式返回。
func (h *LegalHandler) Generate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req GenerateLegalDocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request payload: docType is required", nil)
		return
	}

	pdf, err := h.legalService.Generate(c.Request.Context(), user, req.DocType, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, pdf)
}
