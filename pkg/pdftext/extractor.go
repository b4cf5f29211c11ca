// Package pdftext 从上传的 PDF 中抽取纯文本，支持本地解析与 Apache Tika 两种后端。
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"vyapar-go/pkg/tika"
)

// 默认上限与原有行为一致：抽取 8000 字符，预览 1500 字符。
const (
	DefaultMaxChars     = 8000
	DefaultPreviewChars = 1500
)

// ErrExtractorUnavailable 表示配置的抽取后端不可用，错误信息中带有修复提示。
var ErrExtractorUnavailable = errors.New("pdf text extractor unavailable")

// Extractor 从 PDF 中抽取纯文本，结果不超过配置的字符上限。
type Extractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// New 根据名称创建抽取器。名称未知或 tika 未配置地址时，
// 返回的抽取器在每次调用时报告 ErrExtractorUnavailable，服务本身仍可启动。
func New(name, tikaURL string, maxChars int) Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	switch name {
	case "", "local":
		return &localExtractor{maxChars: maxChars}
	case "tika":
		if tikaURL == "" {
			return unavailable{hint: "set tika.server_url or switch document.extractor to local"}
		}
		return &tikaExtractor{client: tika.NewClient(tikaURL), maxChars: maxChars}
	default:
		return unavailable{hint: fmt.Sprintf("unknown extractor %q, use local or tika", name)}
	}
}

type unavailable struct {
	hint string
}

func (u unavailable) ExtractText(context.Context, io.Reader, string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrExtractorUnavailable, u.hint)
}

type tikaExtractor struct {
	client   *tika.Client
	maxChars int
}

func (e *tikaExtractor) ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error) {
	text, err := e.client.ExtractText(ctx, r, fileName)
	if errors.Is(err, tika.ErrUnreachable) {
		return "", fmt.Errorf("%w: start the Tika server or switch document.extractor to local (%v)", ErrExtractorUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return Truncate(strings.TrimSpace(text), e.maxChars), nil
}

// collectPages 逐页读取文本并以换行拼接。单页失败时跳过该页；
// 累计长度超过 maxChars 后不再读取后续页面。
func collectPages(numPages, maxChars int, page func(i int) (string, error)) string {
	parts := make([]string, 0, numPages)
	total := 0
	for i := 1; i <= numPages; i++ {
		text, err := page(i)
		if err != nil {
			continue
		}
		parts = append(parts, text)
		total += utf8.RuneCountInString(text)
		if total > maxChars {
			break
		}
	}
	return Truncate(strings.TrimSpace(strings.Join(parts, "\n")), maxChars)
}

// Truncate 按字符（rune）截断，不会切断多字节字符。
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	return string([]rune(s)[:maxChars])
}

// Preview 返回前 n 个字符，被截断时追加 "..."。
func Preview(s string, n int) string {
	t := Truncate(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}
