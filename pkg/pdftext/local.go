package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// localExtractor 在进程内用 ledongthuc/pdf 解析，不依赖外部服务。
type localExtractor struct {
	maxChars int
}

func (e *localExtractor) ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("读取上传文件失败: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析 PDF %s 失败: %w", fileName, err)
	}

	return collectPages(reader.NumPage(), e.maxChars, func(i int) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return pageText(reader, i)
	}), ctx.Err()
}

// pageText 读取单页文本；解析库在畸形页面上可能 panic，此处转换为错误。
func pageText(reader *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()
	p := reader.Page(i)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d missing", i)
	}
	return p.GetPlainText(nil)
}
