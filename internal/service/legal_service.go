package service

import (
	"context"
	"strings"
	"time"

	"vyapar-go/internal/model"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/pdfgen"
	"vyapar-go/pkg/storage"
)

// LegalService 定义了法务/人事文书生成相关的操作。
type LegalService interface {
	Types() []string
	Generate(ctx context.Context, user *model.User, docType, name string) (*GeneratedPDF, error)
}

type legalService struct {
	archive storage.Archive
	now     func() time.Time
}

// NewLegalService 创建一个新的 LegalService 实例，archive 可为 nil。
func NewLegalService(archive storage.Archive) LegalService {
	return &legalService{archive: archive, now: time.Now}
}

func (s *legalService) Types() []string {
	return pdfgen.DocTypes()
}

func (s *legalService) Generate(ctx context.Context, user *model.User, docType, name string) (*GeneratedPDF, error) {
	doc := pdfgen.LegalDocument{Type: docType, Name: strings.TrimSpace(name)}
	data, err := pdfgen.GenerateLegalDocPDF(doc)
	if err != nil {
		return nil, err
	}
	out := &GeneratedPDF{FileName: pdfgen.LegalDocFileName(docType, doc.Name), Data: data}

	if s.archive != nil {
		objectName := storage.ObjectName("legal", user.ID, out.FileName, s.now())
		if url, err := s.archive.Put(ctx, objectName, data, "application/pdf"); err != nil {
			log.Warnf("[LegalService] 归档文书失败, type: %s, err: %v", docType, err)
		} else {
			out.URL = url
		}
	}
	return out, nil
}
