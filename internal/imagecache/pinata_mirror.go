// Package imagecache optionally mirrors a listing's marketplace CDN
// photo onto Pinata-pinned IPFS storage, adapted from the teacher's
// Pinata upload client. Mirroring is best-effort: the Dispatcher falls
// back to the original URL on any failure, per SPEC_FULL §4.
package imagecache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PinataMirror uploads a fetched remote image to Pinata and returns a
// gateway URL, memoizing one mirror per source URL for the process
// lifetime so a repeatedly-relisted gift's photo is only uploaded once.
type PinataMirror struct {
	apiURL       string
	gatewayURL   string
	apiKey       string
	secretAPIKey string
	httpClient   *http.Client

	mu    sync.Mutex
	cache map[string]string
}

func NewPinataMirror(apiURL, gatewayURL, apiKey, secret string) *PinataMirror {
	if apiURL == "" {
		apiURL = "https://api.pinata.cloud"
	}
	if gatewayURL == "" {
		gatewayURL = "https://gateway.pinata.cloud/ipfs"
	}
	return &PinataMirror{
		apiURL:       apiURL,
		gatewayURL:   gatewayURL,
		apiKey:       apiKey,
		secretAPIKey: secret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		cache:        make(map[string]string),
	}
}

type pinataFileResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Mirror fetches sourceURL and re-hosts it on Pinata, returning the
// gateway URL. Disabled (returns sourceURL, nil) when no API key is
// configured, so the zero-value-friendly path is a no-op, not an error.
func (m *PinataMirror) Mirror(ctx context.Context, sourceURL string) (string, error) {
	if m.apiKey == "" || m.secretAPIKey == "" || sourceURL == "" {
		return sourceURL, nil
	}

	m.mu.Lock()
	if cached, ok := m.cache[sourceURL]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch source image: status=%d", resp.StatusCode)
	}

	mirrored, err := m.uploadFile(ctx, fileNameFromURL(sourceURL), resp.Body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.cache[sourceURL] = mirrored
	m.mu.Unlock()
	return mirrored, nil
}

func fileNameFromURL(u string) string {
	parts := strings.Split(u, "/")
	if len(parts) == 0 {
		return "gift.jpg"
	}
	name := parts[len(parts)-1]
	if name == "" {
		return "gift.jpg"
	}
	return name
}

func (m *PinataMirror) uploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL+"/pinning/pinFileToIPFS", &buf)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("pinata_api_key", m.apiKey)
	req.Header.Set("pinata_secret_api_key", m.secretAPIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("pinata error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed pinataFileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return "", fmt.Errorf("pinata response missing IpfsHash")
	}
	return fmt.Sprintf("%s/%s", m.gatewayURL, parsed.IpfsHash), nil
}
