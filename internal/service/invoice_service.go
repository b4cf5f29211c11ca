package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/pdfgen"
	"vyapar-go/pkg/storage"
)

// GeneratedPDF 是生成的 PDF 文件，URL 仅在归档成功时非空。
type GeneratedPDF struct {
	FileName string
	Data     []byte
	URL      string
}

// InvoiceService 定义了发票相关的业务操作。
type InvoiceService interface {
	Draft(ctx context.Context, user *model.User) (model.InvoiceDraft, error)
	Generate(ctx context.Context, user *model.User, customer string, amount float64) (*GeneratedPDF, error)
}

type invoiceService struct {
	sessions *sessions
	archive  storage.Archive
	now      func() time.Time
}

// NewInvoiceService 创建一个新的 InvoiceService 实例，archive 可为 nil。
func NewInvoiceService(sessionRepo repository.SessionRepository, historyRepo repository.ChatHistoryRepository, systemPrompt string, archive storage.Archive) InvoiceService {
	return &invoiceService{
		sessions: newSessions(sessionRepo, historyRepo, systemPrompt),
		archive:  archive,
		now:      time.Now,
	}
}

// Draft 返回聊天中累积的发票草稿，用于预填表单。
func (s *invoiceService) Draft(ctx context.Context, user *model.User) (model.InvoiceDraft, error) {
	session, err := s.sessions.load(ctx, user)
	if err != nil {
		return model.InvoiceDraft{}, err
	}
	return session.InvoiceDraft, nil
}

// Generate 渲染发票 PDF，并把表单值写回草稿。
func (s *invoiceService) Generate(ctx context.Context, user *model.User, customer string, amount float64) (*GeneratedPDF, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	customer = strings.TrimSpace(customer)

	now := s.now()
	inv := pdfgen.Invoice{
		Customer: customer,
		Amount:   amount,
		Number:   "INV-" + strings.ToUpper(uuid.NewString()[:8]),
		IssuedAt: now,
	}
	data, err := pdfgen.GenerateInvoicePDF(inv)
	if err != nil {
		return nil, err
	}
	out := &GeneratedPDF{FileName: pdfgen.InvoiceFileName(customer), Data: data}

	_, err = s.sessions.update(ctx, user, func(session *model.Session) {
		session.InvoiceDraft = model.InvoiceDraft{Customer: customer, Amount: amount}
		session.ActiveTab = model.PageInvoiceGenerator
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		objectName := storage.ObjectName("invoices", user.ID, out.FileName, now)
		if url, err := s.archive.Put(ctx, objectName, data, "application/pdf"); err != nil {
			log.Warnf("[InvoiceService] 归档发票失败, number: %s, err: %v", inv.Number, err)
		} else {
			out.URL = url
		}
	}
	log.Infof("[InvoiceService] 发票已生成, userID: %d, number: %s", user.ID, inv.Number)
	return out, nil
}
