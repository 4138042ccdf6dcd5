// Package api is the Portal REST client. All calls carry keyed auth;
// transport-level retries are handled by retryablehttp, everything else
// is operator-driven.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/models"
)

// retryLogger implements retryablehttp.LeveledLogger on top of zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Msgf("[retry] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Msgf("[retry] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Client talks to one Portal server with one key.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	apiKey     string

	healthOnce sync.Once
	health     *models.HealthInfo
	healthErr  error
}

// NewClient creates a Portal client for the given server and key.
func NewClient(server, apiKey string, logger *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(server, "/"),
		apiKey:     apiKey,
	}
}

// BaseURL returns the server this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// GetUser fetches the caller's profile (GET /me).
func (c *Client) GetUser(ctx context.Context) (*models.UserProfile, error) {
	resp, err := c.doRequest(ctx, "GET", "/me?format=json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get user failed: status %d: %s", resp.StatusCode, string(body))
	}

	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	return &profile, nil
}

// GetHealth fetches GET /health once per process and caches it; the
// encryption key id there is the per-environment KMS fallback.
func (c *Client) GetHealth(ctx context.Context) (*models.HealthInfo, error) {
	c.healthOnce.Do(func() {
		resp, err := c.doRequest(ctx, "GET", "/health?format=json", nil)
		if err != nil {
			c.healthErr = err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != nethttp.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			c.healthErr = fmt.Errorf("get health failed: status %d: %s", resp.StatusCode, string(body))
			return
		}

		var health models.HealthInfo
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			c.healthErr = fmt.Errorf("failed to decode health page: %w", err)
			return
		}
		c.health = &health
	})
	return c.health, c.healthErr
}

// GetObject fetches GET /<uuid> as a raw map, used to classify an
// object (IngestionSubmission vs File) before acting on it.
func (c *Client) GetObject(ctx context.Context, uuid string) (map[string]any, error) {
	resp, err := c.doRequest(ctx, "GET", "/"+uuid, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}
	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get object %s failed: status %d: %s", uuid, resp.StatusCode, string(body))
	}

	var object map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&object); err != nil {
		return nil, fmt.Errorf("failed to decode object %s: %w", uuid, err)
	}
	return object, nil
}

// ObjectTypes extracts the @type list from a raw Portal object.
func ObjectTypes(object map[string]any) []string {
	raw, _ := object["@type"].([]any)
	types := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			types = append(types, s)
		}
	}
	return types
}

// PatchFileForUpload registers the filename on the target File object
// (PATCH /<uuid> {"filename": ...}) and returns the scoped upload
// credential bundle from the response @graph.
func (c *Client) PatchFileForUpload(ctx context.Context, uuid, filename string) (*models.UploadCredential, error) {
	resp, err := c.doRequest(ctx, "PATCH", "/"+uuid, map[string]string{"filename": filename})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w for %s: status %d: %s",
			ErrNoUploadCredentials, filename, resp.StatusCode, string(body))
	}

	var result struct {
		Graph []struct {
			UploadCredentials *models.UploadCredential `json:"upload_credentials"`
		} `json:"@graph"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrNoUploadCredentials, filename, err)
	}

	if len(result.Graph) == 0 || result.Graph[0].UploadCredentials == nil ||
		result.Graph[0].UploadCredentials.AccessKeyID == "" ||
		result.Graph[0].UploadCredentials.UploadURL == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoUploadCredentials, filename)
	}
	return result.Graph[0].UploadCredentials, nil
}

// GetIngestionStatus polls one ingestion submission. A 404 is reported
// as ErrNotFound so the poller can terminate cleanly.
func (c *Client) GetIngestionStatus(ctx context.Context, uuid string) (*models.IngestionStatus, error) {
	path := fmt.Sprintf("/ingestion-submissions/%s?format=json&datastore=database", uuid)
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusNotFound {
		return nil, fmt.Errorf("%w: ingestion submission %s", ErrNotFound, uuid)
	}
	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get ingestion status failed: status %d: %s", resp.StatusCode, string(body))
	}

	var status models.IngestionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode ingestion status: %w", err)
	}
	return &status, nil
}

// SubmitForIngestion posts the metadata workbook as a multipart form
// (POST /<uuid or type>/submit_for_ingestion) with any parameter
// fields alongside the datafile.
func (c *Client) SubmitForIngestion(ctx context.Context, target, workbookPath string, parameters map[string]string) (*models.SubmissionResponse, error) {
	file, err := os.Open(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("datafile", filepath.Base(workbookPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	for key, value := range parameters {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to build submission form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build submission form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/submit_for_ingestion", c.baseURL, target)
	req, err := nethttp.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("submit for ingestion failed: status %d: %s", resp.StatusCode, string(body))
	}

	var submission models.SubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		return nil, fmt.Errorf("failed to decode submission response: %w", err)
	}
	return &submission, nil
}
