package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// SearchHandler 处理已解释文档的全文检索请求。
type SearchHandler struct {
	docService service.DocumentService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(docService service.DocumentService) *SearchHandler {
	return &SearchHandler{docService: docService}
}

// Search 处理 GET /documents/search?q=。
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)
	if query == "" {
		respond(c, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	results, err := h.docService.Search(c.Request.Context(), user, query)
	if err != nil {
		log.Errorf("[SearchHandler] 检索失败, error: %v", err)
		respondError(c, err)
		return
	}
	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	respond(c, http.StatusOK, "success", results)
}
