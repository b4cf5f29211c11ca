package pdfgen

import (
	"errors"
	"strings"
)

// 支持的文书类型
const (
	DocOfferLetter = "Offer Letter"
	DocNDA         = "NDA"
	DocLeavePolicy = "Leave Policy"
)

// ErrUnknownDocType 表示请求了不支持的文书类型。
var ErrUnknownDocType = errors.New("unknown legal document type")

// LegalDocument 描述一份待渲染的文书，Name 为候选人或签约方名称，可为空。
type LegalDocument struct {
	Type string
	Name string
}

// DocTypes 返回支持的文书类型，顺序与界面下拉框一致。
func DocTypes() []string {
	return []string{DocOfferLetter, DocNDA, DocLeavePolicy}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}

// legalBody 返回文书正文，每个元素占一段。
func legalBody(doc LegalDocument) ([]string, error) {
	switch doc.Type {
	case DocOfferLetter:
		return []string{
			"Dear " + orDefault(doc.Name, "Candidate") + ",",
			"We are pleased to offer you a position at our company.",
			"This offer is subject to company policies and applicable laws.",
			"Please sign and return to confirm your acceptance.",
		}, nil
	case DocNDA:
		return []string{
			"Non-Disclosure Agreement with " + orDefault(doc.Name, "Party"),
			"The parties agree to keep confidential information private.",
			"This agreement covers disclosures, obligations, and term.",
		}, nil
	case DocLeavePolicy:
		return []string{
			"Leave Policy (Summary)",
			"- Earned Leave, Casual Leave, Sick Leave as per policy.",
			"- Prior approval required for planned leaves.",
			"- Medical certificate may be required for extended sick leave.",
		}, nil
	default:
		return nil, ErrUnknownDocType
	}
}

// GenerateLegalDocPDF 按模板渲染文书，类型未知时返回 ErrUnknownDocType。
func GenerateLegalDocPDF(doc LegalDocument) ([]byte, error) {
	body, err := legalBody(doc)
	if err != nil {
		return nil, err
	}
	d := newDocument(doc.Type)
	for _, p := range body {
		d.line(p)
		d.gap()
	}
	return d.bytes()
}

// LegalDocFileName 返回下载文件名，例如 offer_letter_Anil.pdf。
func LegalDocFileName(docType, name string) string {
	prefix := strings.ReplaceAll(strings.ToLower(docType), " ", "_")
	return prefix + "_" + sanitizeFilePart(name, "document") + ".pdf"
}
