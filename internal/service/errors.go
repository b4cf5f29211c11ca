package service

import (
	"errors"

	"vyapar-go/pkg/hash"
	"vyapar-go/pkg/pdfgen"
	"vyapar-go/pkg/pdftext"
)

// 业务层哨兵错误，handler 通过 errors.Is 映射为 HTTP 状态码。
var (
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrMissingCredentials  = errors.New("username and password are required")
	ErrUserNotFound        = errors.New("username not found")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrEmailDelivery       = errors.New("failed to send email, please try again later")
	ErrUnknownPage         = errors.New("unknown page")
	ErrEmptyMessage        = errors.New("message must not be empty")
	ErrInvalidAmount       = errors.New("amount must not be negative")
	ErrNotPDF              = errors.New("only PDF files are supported")
	ErrEmptyDocument       = errors.New("no text could be extracted from the PDF")
	ErrSearchDisabled      = errors.New("document search is not configured")
	ErrLLMFailed           = errors.New("the assistant is unavailable right now, please try again")

	ErrPasswordTooLong      = hash.ErrPasswordTooLong
	ErrUnknownDocType       = pdfgen.ErrUnknownDocType
	ErrExtractorUnavailable = pdftext.ErrExtractorUnavailable
)
