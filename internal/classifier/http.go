package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient talks to the classification service over multipart HTTP.
type HTTPClient struct {
	endpoint *url.URL
	client   *http.Client
	logger   *zap.Logger
}

// New creates an HTTP client for endpoint. A zero timeout leaves requests
// bounded only by their context.
func New(endpoint string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid classifier endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid classifier endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid classifier endpoint %q: missing host", endpoint)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPClient{
		endpoint: u,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("classifier"),
	}, nil
}

// Endpoint returns the configured prediction URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint.String()
}

// Classify posts req as a single multipart part and decodes the probability.
func (c *HTTPClient) Classify(ctx context.Context, req *Request) (*Prediction, error) {
	if req == nil {
		return nil, errors.New("classifier: nil request")
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("classification response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes_sent", len(req.Data)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, StatusError(resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	return decodePrediction(raw)
}

func encodeMultipart(req *Request) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	field := req.FieldName
	if field == "" {
		field = FieldName
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(req.FileName)))
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func decodePrediction(raw []byte) (*Prediction, error) {
	var payload struct {
		DeepfakeProbability *float64 `json:"deepfake_probability"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "Malformed response from server", Err: err}
	}
	if payload.DeepfakeProbability == nil {
		return nil, &Error{Kind: KindMalformed, Message: "Malformed response from server: missing deepfake_probability"}
	}
	p := *payload.DeepfakeProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, &Error{Kind: KindMalformed, Message: fmt.Sprintf("Malformed response from server: deepfake_probability %v out of range", p)}
	}
	return &Prediction{DeepfakeProbability: p}, nil
}
