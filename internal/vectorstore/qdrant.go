package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxErrorBodyBytes = 1024

// ErrDisabled is returned by operations that need a configured vector database.
var ErrDisabled = errors.New("vector store not configured")

// Point is one stored vector. IDs are unsigned integers so the conversation id
// can be used directly.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type Match struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// SearchRequest finds the nearest points whose payload equals every entry of Must.
type SearchRequest struct {
	Vector []float32
	Limit  int
	Must   map[string]any
}

type Store interface {
	Enabled() bool
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, p Point) error
	Delete(ctx context.Context, id uint64) error
	Search(ctx context.Context, req SearchRequest) ([]Match, error)
}

type Options struct {
	URL        string
	Collection string
	APIKey     string
	VectorDim  int
	Timeout    time.Duration
}

type Qdrant struct {
	http       *resty.Client
	collection string
	dim        int
}

var (
	_ Store = (*Qdrant)(nil)
	_ Store = Noop{}
)

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func NewQdrant(opts Options) (*Qdrant, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if strings.TrimSpace(opts.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if opts.VectorDim <= 0 {
		return nil, fmt.Errorf("qdrant vector dimension must be positive")
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		c.SetHeader("api-key", opts.APIKey)
	}
	return &Qdrant{http: c, collection: opts.Collection, dim: opts.VectorDim}, nil
}

func (q *Qdrant) Enabled() bool { return true }

// EnsureCollection creates the collection with cosine distance when it is missing
// and verifies the vector size when it exists.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Config.Params.Vectors.Size; size != 0 && size != q.dim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", q.collection, q.dim, size), nil)
		}
		return nil
	case IsNotFound(err):
		body := map[string]any{
			"vectors": map[string]any{"size": q.dim, "distance": "Cosine"},
		}
		return q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), body, nil)
	default:
		return err
	}
}

func (q *Qdrant) Upsert(ctx context.Context, p Point) error {
	const op = "upsert"
	if len(p.Vector) == 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("point %d has empty vector", p.ID), nil)
	}
	if len(p.Vector) != q.dim {
		return opErr(op, OperationErrorValidation,
			fmt.Sprintf("point %d dimension mismatch: expected=%d got=%d", p.ID, q.dim, len(p.Vector)), nil)
	}
	if p.Payload == nil {
		p.Payload = map[string]any{}
	}
	body := map[string]any{"points": []Point{p}}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), body, nil)
}

func (q *Qdrant) Delete(ctx context.Context, id uint64) error {
	body := map[string]any{"points": []uint64{id}}
	return q.doJSON(ctx, "delete", http.MethodPost, q.collectionPath("/points/delete?wait=true"), body, nil)
}

func (q *Qdrant) Search(ctx context.Context, req SearchRequest) ([]Match, error) {
	const op = "search"
	if len(req.Vector) != q.dim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", q.dim, len(req.Vector)), nil)
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	body := map[string]any{
		"vector":       req.Vector,
		"limit":        req.Limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(req.Must) > 0 {
		must := make([]any, 0, len(req.Must))
		for key, value := range req.Must {
			must = append(must, map[string]any{"key": key, "match": map[string]any{"value": value}})
		}
		body["filter"] = map[string]any{"must": must}
	}

	matches := []Match{}
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), body, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (q *Qdrant) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	req := q.http.R().SetContext(ctx)
	if in != nil {
		req.SetBody(in)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return classifyTransportError(op, err)
	}

	raw := resp.Body()
	if resp.IsError() {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode(), truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := parseEnvelopeStatus(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode(), Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.collection + suffix
}

// parseEnvelopeStatus returns "" for an ok status and a message otherwise. Qdrant
// reports either the string "ok" or an object carrying an error field.
func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "qdrant status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

// Noop is used when no vector database is configured.
type Noop struct{}

func (Noop) Enabled() bool { return false }
func (Noop) EnsureCollection(context.Context) error { return nil }
func (Noop) Upsert(context.Context, Point) error { return nil }
func (Noop) Delete(context.Context, uint64) error { return nil }
func (Noop) Search(context.Context, SearchRequest) ([]Match, error) {
	return nil, ErrDisabled
}
