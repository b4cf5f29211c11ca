package model

import "time"

// 页面名称，对应侧边栏导航。
const (
	PageOverview         = "Overview"
	PageChatAssistant    = "Chat Assistant"
	PageInvoiceGenerator = "Invoice Generator"
	PageExplainDocument  = "Explain Document"
	PageLegalDocGen      = "Legal Doc Generator"
)

// Pages 按侧边栏顺序列出所有页面。
var Pages = []string{
	PageOverview,
	PageChatAssistant,
	PageInvoiceGenerator,
	PageExplainDocument,
	PageLegalDocGen,
}

// InvoiceDraft 是尚未生成 PDF 的发票草稿，由聊天意图或发票表单填充。
type InvoiceDraft struct {
	Customer string  `json:"customer"`
	Amount   float64 `json:"amount"`
}

// Session 是登录用户的显式会话上下文：当前页面、发票草稿、最近意图和会话内的聊天缓冲区。
// 登录时创建并从 chat_history 回放消息，登出时删除。
type Session struct {
	UserID       uint          `json:"userId"`
	Username     string        `json:"username"`
	ActiveTab    string        `json:"activeTab"`
	InvoiceDraft InvoiceDraft  `json:"invoiceDraft"`
	LastIntent   string        `json:"lastIntent"`
	Messages     []ChatMessage `json:"messages"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// NewSession 创建一个停留在概览页的新会话。
func NewSession(user *User, messages []ChatMessage) *Session {
	return &Session{
		UserID:     user.ID,
		Username:   user.Username,
		ActiveTab:  PageOverview,
		LastIntent: "none",
		Messages:   messages,
		UpdatedAt:  time.Now(),
	}
}

// IsPage 判断名称是否为已知页面。
func IsPage(name string) bool {
	for _, p := range Pages {
		if p == name {
			return true
		}
	}
	return false
}
