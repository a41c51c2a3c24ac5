package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"phCareers/internal/config"
)

// Client 封装 MinIO 客户端，管理两个 Bucket：
// 招聘页素材（公开可读）与候选人简历（私有，仅限预签名下载）。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	assetBucket    string
	resumeBucket   string
	publicBaseURL  string
}

// ObjectMeta 描述 Bucket 中对象的关键信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// NewClient 根据配置初始化 MinIO 客户端，确保两个 Bucket 存在，
// 并把素材 Bucket 设置为匿名可读。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	parsedPublicEndpoint, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	publicHost := parsedPublicEndpoint.Host
	if publicHost == "" {
		return nil, fmt.Errorf("invalid minio public endpoint, host missing")
	}

	publicClient, err := minio.New(publicHost, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: parsedPublicEndpoint.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, bucket := range []string{cfg.AssetBucket, cfg.ResumeBucket} {
		exists, err := internalClient.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
		}
		if !exists {
			if err := internalClient.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("make bucket %q: %w", bucket, err)
			}
		}
	}

	if err := internalClient.SetBucketPolicy(ctx, cfg.AssetBucket, anonymousReadPolicy(cfg.AssetBucket)); err != nil {
		return nil, fmt.Errorf("set asset bucket policy: %w", err)
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		assetBucket:    cfg.AssetBucket,
		resumeBucket:   cfg.ResumeBucket,
		publicBaseURL:  strings.TrimRight(cfg.PublicEndpoint, "/"),
	}, nil
}

func anonymousReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"AWS": ["*"]},
      "Action": ["s3:GetObject"],
      "Resource": ["arn:aws:s3:::%s/*"]
    }
  ]
}`, bucket)
}

// UploadAsset 上传公开素材（Logo/Banner/视频），返回稳定的公开 URL。
func (c *Client) UploadAsset(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.internalClient.PutObject(ctx, c.assetBucket, objectKey, reader, size, opts); err != nil {
		return "", fmt.Errorf("put asset %q: %w", objectKey, err)
	}
	return c.AssetURL(objectKey), nil
}

// AssetURL 返回素材对象的稳定公开 URL。
func (c *Client) AssetURL(objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.assetBucket, objectKey)
}

// AssetKeyFromURL 从稳定公开 URL 还原对象 Key。URL 不属于本
// Bucket 时返回空串。
func (c *Client) AssetKeyFromURL(assetURL string) string {
	prefix := c.publicBaseURL + "/" + c.assetBucket + "/"
	if !strings.HasPrefix(assetURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(assetURL, prefix)
}

// DeleteAsset 删除公开素材。对象不存在视为成功（幂等）。
func (c *Client) DeleteAsset(ctx context.Context, objectKey string) error {
	return c.removeObject(ctx, c.assetBucket, objectKey)
}

// DeleteAssetPrefix 删除指定前缀下的所有素材对象。
func (c *Client) DeleteAssetPrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	objCh := c.internalClient.ListObjects(ctx, c.assetBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var failed int
	for object := range objCh {
		if object.Err != nil {
			return fmt.Errorf("list assets under %q: %w", prefix, object.Err)
		}
		if strings.TrimSpace(object.Key) == "" {
			continue
		}
		if err := c.removeObject(ctx, c.assetBucket, object.Key); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("delete assets under %q: %d errors", prefix, failed)
	}
	return nil
}

// UploadResume 将候选人简历写入私有 Bucket。
func (c *Client) UploadResume(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.internalClient.PutObject(ctx, c.resumeBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("put resume %q: %w", objectKey, err)
	}
	return nil
}

// GetResume 直接读取私有 Bucket 中的简历对象。
func (c *Client) GetResume(ctx context.Context, objectKey string) (*minio.Object, error) {
	obj, err := c.internalClient.GetObject(ctx, c.resumeBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get resume %q: %w", objectKey, err)
	}
	return obj, nil
}

// ResumeDownloadURL 生成简历的限时下载链接，并强制浏览器按附件下载。
func (c *Client) ResumeDownloadURL(ctx context.Context, objectKey string, duration time.Duration, filename string) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	presignedURL, err := c.publicClient.PresignedGetObject(ctx, c.resumeBucket, objectKey, duration, params)
	if err != nil {
		return "", fmt.Errorf("presign resume %q: %w", objectKey, err)
	}
	return presignedURL.String(), nil
}

// DeleteResume 删除简历对象。对象不存在视为成功（幂等）。
func (c *Client) DeleteResume(ctx context.Context, objectKey string) error {
	return c.removeObject(ctx, c.resumeBucket, objectKey)
}

func (c *Client) removeObject(ctx context.Context, bucket, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if IsNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}
