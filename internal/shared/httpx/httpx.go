package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is the error body the API returns on non-2xx responses. Different
// handlers fill different fields, so all of them are optional.
type APIError struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// Text returns the most specific human-readable message in the body.
func (e APIError) Text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return e.Reason
	}
}

// NewClient returns an http.Client with connect/TLS timeouts and OTEL
// client spans on every request.
func NewClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   timeout,
	}
}

func SetBearer(r *http.Request, token string) {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func JSONBody(v any) (io.Reader, string, error) {
	if v == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

// File is one multipart file part.
type File struct {
	Field string
	Name  string
	Body  io.Reader
}

// MultipartBody encodes fields (empty values skipped) and files into a
// multipart/form-data body.
func MultipartBody(fields map[string]string, files ...File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		if f.Body == nil {
			continue
		}
		fw, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(fw, f.Body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func DecodeInto(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

// ReadError decodes an error body, falling back to the status text.
func ReadError(resp *http.Response) APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e APIError
	if len(body) > 0 && json.Unmarshal(body, &e) == nil && e.Text() != "" {
		if e.Status == 0 {
			e.Status = resp.StatusCode
		}
		return e
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(resp.StatusCode)
	}
	return APIError{Error: msg, Status: resp.StatusCode}
}

var ErrEmptyBody = errors.New("empty response body")

func ExpectJSON(resp *http.Response) error {
	if resp.ContentLength == 0 {
		return ErrEmptyBody
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return fmt.Errorf("unexpected content type %q", ct)
	}
	return nil
}
