package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
)

// DocumentHandler 负责处理文档解释相关的 API 请求。
type DocumentHandler struct {
	docService    service.DocumentService
	maxUploadSize int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。maxUploadSize 为 0 时不限制大小。
func NewDocumentHandler(docService service.DocumentService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{docService: docService, maxUploadSize: maxUploadSize}
}

// Explain 处理 multipart 上传的 PDF。?stream=true 时以 SSE 推送解释内容。
func (h *DocumentHandler) Explain(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("Explain: 读取上传文件失败, user: %s, error: %v", user.Username, err)
		respond(c, http.StatusBadRequest, "a PDF file is required in the 'file' field", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond(c, http.StatusBadRequest, "failed to open uploaded file", nil)
		return
	}
	defer file.Close()

	stream, _ := strconv.ParseBool(c.Query("stream"))
	if !stream {
		res, err := h.docService.Explain(c.Request.Context(), user, fileHeader.Filename, file, nil)
		if err != nil {
			log.Errorf("Explain: failed for user %s, file %s, error: %v", user.Username, fileHeader.Filename, err)
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "success", res)
		return
	}

	sse, err := newSSEWriter(c.Writer)
	if err != nil {
		respond(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	res, err := h.docService.Explain(c.Request.Context(), user, fileHeader.Filename, file, sse)
	if err != nil {
		log.Errorf("Explain(stream): failed for user %s, file %s, error: %v", user.Username, fileHeader.Filename, err)
		if !sse.started {
			respondError(c, err)
			return
		}
		_, msg := errorStatus(err)
		sse.WriteError(msg)
		return
	}
	if err := sse.WriteEvent("complete", res); err != nil {
		log.Warnf("Explain(stream): 写入完成事件失败: %v", err)
	}
}
