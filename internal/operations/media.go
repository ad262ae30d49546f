package operations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/ports"
)

// MediaRunner executes media-crop and media-extract operations against a
// media processing service speaking a small JSON-over-HTTP contract:
// POST /crop and POST /extract-frame, each answering {"url": "..."} on
// success or {"error": "..."} with a non-2xx status.
var _ ports.OperationRunner = (*MediaRunner)(nil)

type MediaRunner struct {
	asyncRunner

	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewMediaRunner(baseURL string, config *domain.Config, logger *slog.Logger) *MediaRunner {
	if logger == nil {
		logger = slog.Default()
	}
	config.Normalize()

	// the per-operation context bounds each request; the client itself
	// carries no timeout so the two limits cannot race
	return &MediaRunner{
		asyncRunner: newAsyncRunner(),
		baseURL:     baseURL,
		client:      &http.Client{},
		timeout:     config.OperationTimeout,
		logger:      logger.With("component", "media-runner"),
	}
}

type cropPayload struct {
	URL    string  `json:"url"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type extractPayload struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

type mediaResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (r *MediaRunner) Submit(ctx context.Context, req ports.OperationRequest) (string, error) {
	var path string
	var payload any

	switch req.Kind {
	case ports.OperationMediaCrop:
		path = "/crop"
		payload = cropPayload{
			URL:    req.InputURL,
			X:      req.Params.X,
			Y:      req.Params.Y,
			Width:  req.Params.Width,
			Height: req.Params.Height,
		}
	case ports.OperationMediaExtract:
		path = "/extract-frame"
		payload = extractPayload{
			URL:       req.InputURL,
			Timestamp: req.Params.Timestamp,
		}
	default:
		return "", fmt.Errorf("media runner cannot execute %q operations", req.Kind)
	}

	handle := r.launch(ctx, r.timeout, func(opCtx context.Context) (string, error) {
		return r.post(opCtx, path, payload)
	})

	r.logger.Debug("media operation submitted",
		"handle", handle,
		"kind", string(req.Kind),
	)
	return handle, nil
}

func (r *MediaRunner) Poll(ctx context.Context, handle string) (ports.OperationUpdate, error) {
	return r.poll(handle)
}

func (r *MediaRunner) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var decoded mediaResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("media service returned malformed response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decoded.Error
		if message == "" {
			message = fmt.Sprintf("media service returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%s", message)
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("media service returned no output url")
	}
	return decoded.URL, nil
}
