// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vyapar-go/internal/config"
	"vyapar-go/pkg/log"
)

// Archive 保存生成或上传的 PDF，并返回一个限时下载地址。
type Archive interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// MinioArchive 是基于 MinIO 的 Archive 实现。
type MinioArchive struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinioArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinioArchive(ctx context.Context, cfg config.MinIOConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket=%s", cfg.BucketName)

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioArchive{client: client, bucket: cfg.BucketName, expiry: expiry}, nil
}

// Put 上传对象并生成预签名下载地址。
func (a *MinioArchive) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s 失败: %w", objectName, err)
	}

	presignedURL, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, a.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}

// ObjectName 按用户与类别生成对象路径，例如 invoices/7/20261015-093000-invoice_Anil.pdf。
func ObjectName(kind string, userID uint, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%d/%s-%s", kind, userID, now.Format("20060102-150405"), fileName)
}
