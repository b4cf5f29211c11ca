package pdfgen

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Invoice 是一张待渲染的发票。
type Invoice struct {
	Customer string
	Amount   float64
	Number   string
	IssuedAt time.Time
}

// FormatAmount 以千分位和两位小数格式化金额，例如 Rs. 5,000.00。
// 内置字体不含 ₹ 字形，因此使用 Rs. 前缀。
func FormatAmount(amount float64) string {
	return "Rs. " + humanize.FormatFloat("#,###.##", amount)
}

// GenerateInvoicePDF 渲染一张单页发票。
func GenerateInvoicePDF(inv Invoice) ([]byte, error) {
	d := newDocument("VyaparGPT - Invoice")

	if inv.Number != "" {
		d.line("Invoice No: " + inv.Number)
	}
	if !inv.IssuedAt.IsZero() {
		d.line("Date: " + inv.IssuedAt.Format("02 Jan 2006"))
	}
	d.gap()

	customer := inv.Customer
	if customer == "" {
		customer = "-"
	}
	d.line("Customer: " + customer)
	d.line("Amount: " + FormatAmount(inv.Amount))
	d.line("Status: Pending")

	return d.bytes()
}

// InvoiceFileName 返回下载文件名 invoice_<customer>.pdf。
func InvoiceFileName(customer string) string {
	return "invoice_" + sanitizeFilePart(customer, "customer") + ".pdf"
}
