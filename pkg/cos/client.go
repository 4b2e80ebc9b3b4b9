package cos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Redwinam/dida-master/config"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

var (
	ErrNotConfigured    = errors.New("对象存储未配置")
	ErrCDNNotConfigured = errors.New("CDN 鉴权未配置")
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxFetchSize    = 10 << 20
)

// Client 对象存储客户端
// 不做重试，失败以 *pkgerrors.StatusError 返回给调用方
type Client struct {
	signer     *Signer
	cdn        *CDNSigner
	host       string
	baseURL    string
	enabled    bool
	httpClient *http.Client
	now        func() time.Time
}

// NewClient 根据配置创建客户端
// cfg.Endpoint 非空时请求发往该地址（私有部署或测试），否则使用 {bucket}.cos.{region}.myqcloud.com
func NewClient(cfg *config.COSConfig) *Client {
	c := &Client{
		signer:     NewSigner(cfg.SecretID, cfg.SecretKey),
		enabled:    cfg.Enabled(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}

	c.host = fmt.Sprintf("%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	c.baseURL = "https://" + c.host
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
			c.host = u.Host
			c.baseURL = strings.TrimRight(cfg.Endpoint, "/")
		}
	}

	if cfg.CDNDomain != "" && cfg.CDNAuthKey != "" {
		c.cdn = NewCDNSigner(cfg.CDNDomain, cfg.CDNAuthKey, time.Duration(cfg.CDNAuthTTL)*time.Second)
	}

	return c
}

// Enabled 是否可用
func (c *Client) Enabled() bool { return c.enabled }

// Upload 上传对象
func (c *Client) Upload(ctx context.Context, key string, content []byte) error {
	headers := map[string]string{
		"Host":           c.host,
		"Content-Type":   contentTypeJSON,
		"Content-Length": strconv.Itoa(len(content)),
	}
	resp, err := c.do(ctx, http.MethodPut, key, headers, content)
	if err != nil {
		return fmt.Errorf("上传对象 %s 失败: %w", key, err)
	}
	resp.Body.Close()
	return nil
}

// Fetch 读取对象内容
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, key, map[string]string{"Host": c.host}, nil)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 响应失败: %w", key, err)
	}
	return body, nil
}

// Delete 删除对象
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, key, map[string]string{"Host": c.host}, nil)
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", key, err)
	}
	resp.Body.Close()
	return nil
}

// SignedURL 生成 CDN 鉴权访问地址
func (c *Client) SignedURL(key string) (string, error) {
	if c.cdn == nil {
		return "", ErrCDNNotConfigured
	}
	return c.cdn.SignedURL(key, c.now()), nil
}

// UploadRecord 以 JSON 形式上传记录
func (c *Client) UploadRecord(ctx context.Context, key string, rec *StoredRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	return c.Upload(ctx, key, data)
}

// FetchRecord 读取并解析记录；内容不是记录 JSON 时以原文作为 Content
func (c *Client) FetchRecord(ctx context.Context, key string) (*StoredRecord, error) {
	data, err := c.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	var rec StoredRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return &StoredRecord{Content: string(data)}, nil
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, key string, headers map[string]string, body []byte) (*http.Response, error) {
	if !c.enabled {
		return nil, ErrNotConfigured
	}

	key = strings.TrimPrefix(key, "/")
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+key, reader)
	if err != nil {
		return nil, err
	}
	req.Host = c.host
	if ct, ok := headers["Content-Type"]; ok {
		req.Header.Set("Content-Type", ct)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}
	req.Header.Set("Authorization", c.signer.Authorization(method, key, headers, c.now()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &pkgerrors.StatusError{Service: "cos", StatusCode: resp.StatusCode, Body: string(text)}
	}
	return resp, nil
}
