// Package pdfgen 渲染发票与法律文书 PDF。
package pdfgen

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	marginLeft = 72.0
	lineHeight = 18.0
	footerText = "Generated by VyaparGPT (demo)"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// document 封装一页 A4 文档的公共排版：标题、正文行与页脚。
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginLeft, marginLeft, marginLeft)
	pdf.SetTitle(title, true)
	pdf.SetCreator("VyaparGPT", true)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 28, d.tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(lineHeight)
	pdf.SetFont("Helvetica", "", 12)
	return d
}

func (d *document) line(text string) {
	d.pdf.MultiCell(0, lineHeight, d.tr(text), "", "L", false)
}

func (d *document) gap() {
	d.pdf.Ln(lineHeight / 2)
}

// bytes 写入页脚并输出 PDF 字节。
func (d *document) bytes() ([]byte, error) {
	d.pdf.Ln(lineHeight * 2)
	d.pdf.SetFont("Helvetica", "I", 10)
	d.pdf.CellFormat(0, lineHeight, d.tr(footerText), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeFilePart 把名称转换为可安全放入文件名的形式，空名称使用 fallback。
func sanitizeFilePart(name, fallback string) string {
	name = strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if name == "" {
		return fallback
	}
	return name
}
