package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/pdftext"
	"vyapar-go/pkg/storage"
)

// DocumentIndex 是已解释文档的全文索引，由 pkg/es 实现。
type DocumentIndex interface {
	IndexDocument(ctx context.Context, doc model.ExplainedDocument) error
	Search(ctx context.Context, userID uint, query string, size int) ([]model.SearchResponseDTO, error)
}

// ExplainResult 是一次文档解释的结果。
type ExplainResult struct {
	DocID       string `json:"docId"`
	FileName    string `json:"fileName"`
	Preview     string `json:"preview"`
	Explanation string `json:"explanation"`
	ArchiveURL  string `json:"archiveUrl,omitempty"`
}

// DocumentService 接口定义了文档解释与检索相关的业务操作。
type DocumentService interface {
	// Explain 抽取 PDF 文本并请求 LLM 解释；writer 不为 nil 时以流式输出解释。
	Explain(ctx context.Context, user *model.User, fileName string, r io.Reader, writer llm.MessageWriter) (*ExplainResult, error)
	Search(ctx context.Context, user *model.User, query string) ([]model.SearchResponseDTO, error)
}

// DocumentServiceDeps 汇总了 DocumentService 的依赖，Archive 与 Index 可为 nil。
type DocumentServiceDeps struct {
	Sessions       repository.SessionRepository
	History        repository.ChatHistoryRepository
	SystemPrompt   string
	DocumentPrompt string
	Extractor      pdftext.Extractor
	LLM            llm.Client
	Generation     *llm.GenerationParams
	PreviewChars   int
	Archive        storage.Archive
	Index          DocumentIndex
}

type documentService struct {
	sessions       *sessions
	documentPrompt string
	extractor      pdftext.Extractor
	llmClient      llm.Client
	gen            *llm.GenerationParams
	previewChars   int
	archive        storage.Archive
	index          DocumentIndex
	now            func() time.Time
}

const searchResultSize = 10

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(d DocumentServiceDeps) DocumentService {
	previewChars := d.PreviewChars
	if previewChars <= 0 {
		previewChars = pdftext.DefaultPreviewChars
	}
	return &documentService{
		sessions:       newSessions(d.Sessions, d.History, d.SystemPrompt),
		documentPrompt: d.DocumentPrompt,
		extractor:      d.Extractor,
		llmClient:      d.LLM,
		gen:            d.Generation,
		previewChars:   previewChars,
		archive:        d.Archive,
		index:          d.Index,
		now:            time.Now,
	}
}

func (s *documentService) Explain(ctx context.Context, user *model.User, fileName string, r io.Reader, writer llm.MessageWriter) (*ExplainResult, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, ErrNotPDF
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	// 1. 抽取文本
	text, err := s.extractor.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	// 2. 以整个会话加上解释请求调用 LLM
	session, err := s.sessions.load(ctx, user)
	if err != nil {
		return nil, err
	}
	prompt := s.documentPrompt + "\n\nDocument text:\n" + text
	msgs := append(toLLMMessages(session.Messages), llm.Message{Role: model.RoleUser, Content: prompt})

	explanation, err := s.complete(ctx, msgs, writer)
	if err != nil {
		return nil, err
	}

	// 3. 解释请求与回复都写入聊天记录
	if _, err := s.sessions.record(user.ID, model.RoleUser, prompt); err != nil {
		return nil, err
	}
	if _, err := s.sessions.record(user.ID, model.RoleAssistant, explanation); err != nil {
		return nil, err
	}
	_, err = s.sessions.update(ctx, user, func(session *model.Session) {
		session.ActiveTab = model.PageExplainDocument
	})
	if err != nil {
		return nil, err
	}

	result := &ExplainResult{
		DocID:       uuid.NewString(),
		FileName:    fileName,
		Preview:     pdftext.Preview(text, s.previewChars),
		Explanation: explanation,
	}

	// 4. 归档与索引失败不影响本次解释
	var objectName string
	if s.archive != nil {
		objectName = storage.ObjectName("documents", user.ID, filepath.Base(fileName), s.now())
		archiveURL, err := s.archive.Put(ctx, objectName, data, "application/pdf")
		if err != nil {
			log.Warnf("[DocumentService] 归档文档失败, file: %s, err: %v", fileName, err)
			objectName = ""
		} else {
			result.ArchiveURL = archiveURL
		}
	}
	if s.index != nil {
		doc := model.ExplainedDocument{
			DocID:       result.DocID,
			UserID:      user.ID,
			FileName:    fileName,
			TextContent: text,
			Explanation: explanation,
			ObjectName:  objectName,
			CreatedAt:   s.now(),
		}
		if err := s.index.IndexDocument(ctx, doc); err != nil {
			log.Warnf("[DocumentService] 索引文档失败, file: %s, err: %v", fileName, err)
		}
	}

	log.Infow("[DocumentService] 文档解释完成", "userID", user.ID, "file", fileName, "chars", len([]rune(text)))
	return result, nil
}

func (s *documentService) complete(ctx context.Context, msgs []llm.Message, writer llm.MessageWriter) (string, error) {
	if writer == nil {
		out, err := s.llmClient.Complete(ctx, msgs, s.gen)
		if err != nil {
			log.Errorf("[DocumentService] LLM 调用失败: %v", err)
			return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
		}
		return out, nil
	}
	collector := &collectingWriter{next: writer}
	if err := s.llmClient.StreamChatMessages(ctx, msgs, s.gen, collector); err != nil {
		log.Errorf("[DocumentService] LLM 流式调用失败: %v", err)
		return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}
	return collector.String(), nil
}

func (s *documentService) Search(ctx context.Context, user *model.User, query string) ([]model.SearchResponseDTO, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchResponseDTO{}, nil
	}
	return s.index.Search(ctx, user.ID, query, searchResultSize)
}
