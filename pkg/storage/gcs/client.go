package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

const (
	defaultBaseURL = "https://storage.googleapis.com"
	pingTimeout    = 5 * time.Second
)

// Client talks to the GCS JSON API. Objects uploaded with a download token in
// their metadata are served by Firebase Storage download URLs.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	bucket      string
	tokenSource *tokenSource
}

var _ storage.BlobStore = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	var ts *tokenSource
	var err error
	switch {
	case gcp.CredentialsJSON != "":
		ts, err = newServiceAccountTokenSource(httpClient, gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(gcp.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		ts, err = newServiceAccountTokenSource(httpClient, string(raw))
	default:
		ts = newMetadataTokenSource(httpClient)
	}
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:  httpClient,
		baseURL:     defaultBaseURL,
		bucket:      cfg.BucketName,
		tokenSource: ts,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping lists at most one object, which requires storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if c.bucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.baseURL, url.PathEscape(c.bucket))
	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check failed", resp)
	}
	return nil
}

// Put performs a multipart upload so object metadata lands with the bytes.
func (c *Client) Put(ctx context.Context, obj storage.Object) error {
	if obj.Path == "" {
		return errors.New("gcs object path is required")
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta, err := json.Marshal(map[string]any{
		"name":        obj.Path,
		"contentType": contentType,
		"metadata":    obj.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode object metadata: %w", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(meta); err != nil {
		return err
	}
	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return err
	}
	if _, err := mediaPart.Write(obj.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=multipart", c.baseURL, url.PathEscape(c.bucket))
	resp, err := c.do(ctx, http.MethodPost, u, body, "multipart/related; boundary="+mw.Boundary())
	if err != nil {
		return fmt.Errorf("gcs upload %s: %w", obj.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs upload "+obj.Path, resp)
	}
	return nil
}

// Get streams the object's bytes. Callers close the reader.
func (c *Client) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", c.baseURL, url.PathEscape(c.bucket), url.PathEscape(path))
	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, fmt.Errorf("gcs download %s: %w", path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
	default:
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError("gcs download "+path, resp)
	}
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func statusError(prefix string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("%s: %s: %s", prefix, resp.Status, msg)
	}
	return fmt.Errorf("%s: %s", prefix, resp.Status)
}
