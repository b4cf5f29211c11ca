package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vyapar-go/internal/config"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "invoices/7/20261015-093000-invoice_Anil.pdf", ObjectName("invoices", 7, "invoice_Anil.pdf", now))
}

// fakeS3 只实现 Put 所需的最小 S3 接口。
func fakeS3(t *testing.T) (*httptest.Server, *[]string) {
	var puts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Query().Has("location"):
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			puts = append(puts, r.URL.Path+":"+string(body))
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	return srv, &puts
}

func TestMinioArchive_Put(t *testing.T) {
	srv, puts := fakeS3(t)
	defer srv.Close()

	a, err := NewMinioArchive(context.Background(), config.MinIOConfig{
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "vyapar",
		URLExpiry:       time.Minute,
	})
	require.NoError(t, err)

	url, err := a.Put(context.Background(), "invoices/1/x.pdf", []byte("%PDF-1.3"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "/vyapar/invoices/1/x.pdf")
	assert.Contains(t, url, "X-Amz-Expires=60")
	require.Len(t, *puts, 1)
	assert.Contains(t, (*puts)[0], "/vyapar/invoices/1/x.pdf")
}
