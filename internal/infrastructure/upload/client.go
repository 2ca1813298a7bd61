package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client — клиент медиа-хранилища: кладем байты, получаем постоянный URL.
// Провайдер для нас непрозрачен, наружу выходят только Upload и Destroy.
type Client struct {
	baseURL    string
	uploadKey  string
	httpClient *http.Client
}

func NewClient(baseURL, uploadKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		uploadKey: uploadKey,
		// Большие видео, таймаут щедрый
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

func (c *Client) Upload(ctx context.Context, name string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.uploadKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, msg)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SecureURL, nil
}

// Destroy удаляет замененный медиафайл по id, выведенному из URL.
func (c *Client) Destroy(ctx context.Context, mediaURL string) error {
	publicID := PublicIDFromURL(mediaURL)
	if publicID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/media/"+url.PathEscape(publicID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.uploadKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("destroy status %d", resp.StatusCode)
	}
	return nil
}

// PublicIDFromURL — последний сегмент пути без расширения.
func PublicIDFromURL(mediaURL string) string {
	parts := strings.Split(mediaURL, "/")
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	if dot := strings.LastIndex(last, "."); dot > 0 {
		last = last[:dot]
	}
	return last
}
