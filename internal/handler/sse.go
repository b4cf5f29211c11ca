package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter 以 Server-Sent Events 推送流式输出，实现 llm.MessageWriter。
// 响应头在第一次写入时才发送，因此在此之前发生的错误仍可以普通 JSON 返回。
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

// WriteEvent 发送一个命名事件，data 以 JSON 编码。
func (s *sseWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.start()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteMessage 把一个 LLM 分块作为 chunk 事件发送。
func (s *sseWriter) WriteMessage(_ int, data []byte) error {
	return s.WriteEvent("chunk", map[string]string{"chunk": string(data)})
}

// WriteError 发送 error 事件。
func (s *sseWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}
