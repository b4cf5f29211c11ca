// Package intent 将一条聊天消息归类为发票、文档或普通对话意图，并抽取发票字段。
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind 是意图类别。
type Kind string

const (
	KindInvoice  Kind = "invoice"
	KindDocument Kind = "document"
	KindChat     Kind = "chat"
)

// Result 是一次分类的结果。Customer 与 Amount 仅对发票意图有意义，未识别时为零值。
type Result struct {
	Kind     Kind    `json:"kind"`
	Customer string  `json:"customer"`
	Amount   float64 `json:"amount"`
}

var invoicePhrases = []string{
	"create invoice", "generate invoice", "make invoice",
	"create bill", "generate bill", "make bill",
	"invoice for", "bill for",
}

var (
	documentActions  = []string{"upload", "analyze", "explain"}
	documentSubjects = []string{"document", "pdf", "gst", "notice"}
	documentPhrases  = []string{
		"upload document", "explain document", "analyze document",
		"upload pdf", "explain pdf", "analyze pdf",
		"upload gst", "explain gst", "analyze notice",
		"can you analyze this", "help me understand this document",
	}
)

const number = `\d+(?:,\d+)*(?:\.\d{1,2})?`

var (
	customerRe = regexp.MustCompile(`(?:invoice|bill|for)\s+(?:(?:for|to|of)\b)?\s*([a-z\s]+?)\s*(?:\bfor\b|\bof\b|₹|\brs\b|\brupees?\b|\binr\b|\bamount\b|\d|$)`)
	// 货币标记在数字之前（₹5000、rs. 5,000）或之后（5000 rupees）
	markedAmountRe = regexp.MustCompile(`(?:₹|\brs\.?|\brupees?\b|\binr\b)\s*(` + number + `)|(` + number + `)\s*(?:₹|\brs\b|\brupees?\b|\binr\b)`)
	bareAmountRe   = regexp.MustCompile(number)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Detect 对输入文本分类。该函数对任意字符串都有定义，不会失败。
// 同时命中发票与文档规则时按发票处理。
func Detect(text string) Result {
	t := strings.ToLower(text)

	if containsAny(t, invoicePhrases) {
		return Result{
			Kind:     KindInvoice,
			Customer: extractCustomer(t),
			Amount:   extractAmount(t),
		}
	}
	if isDocumentRequest(t) {
		return Result{Kind: KindDocument}
	}
	return Result{Kind: KindChat}
}

func isDocumentRequest(t string) bool {
	if containsAny(t, documentActions) && containsAny(t, documentSubjects) {
		return true
	}
	return containsAny(t, documentPhrases)
}

func extractCustomer(t string) string {
	m := customerRe.FindStringSubmatch(t)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(spaceRe.ReplaceAllString(m[1], " "))
	switch name {
	case "", "for", "to", "of":
		// "invoice for" 后面没有名字
		return ""
	}
	// Caser 有内部状态，不能在 goroutine 之间共享
	return cases.Title(language.English).String(name)
}

func extractAmount(t string) float64 {
	if m := markedAmountRe.FindStringSubmatch(t); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		return parseAmount(raw)
	}
	return parseAmount(bareAmountRe.FindString(t))
}

// parseAmount 去掉千分位逗号（兼容 1,00,000 与 100,000 两种写法）后解析。
func parseAmount(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
