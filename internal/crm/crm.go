package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned by reads against the no-op gateway.
var ErrNotConfigured = errors.New("crm not configured")

// Error is a non-2xx answer from the CRM.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("crm http status=%d", e.StatusCode)
	}
	return fmt.Sprintf("crm http status=%d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the CRM.
func IsNotFound(err error) bool {
	var crmErr *Error
	return errors.As(err, &crmErr) && crmErr.StatusCode == 404
}

// UserProfile is the CRM's view of a student.
type UserProfile struct {
	ID               int64    `json:"id"`
	Interests        []string `json:"interests"`
	EducationLevel   *string  `json:"education_level"`
	CareerGoals      []string `json:"career_goals"`
	EnrolledCourses  []any    `json:"enrolled_courses"`
	CompletedCourses []any    `json:"completed_courses"`
}

type Course struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	DifficultyLevel string  `json:"difficulty_level"`
	DurationHours   float64 `json:"duration_hours"`
	Price           float64 `json:"price"`
	InstructorID    int64   `json:"instructor_id"`
}

type UserPayload struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

type CourseQuery struct {
	Category   string
	Difficulty string
	Page       int
	PerPage    int
}

type ConversationSync struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	Title          string `json:"title"`
	MessageCount   int    `json:"message_count"`
	VectorID       string `json:"vector_id"`
}

// Gateway is the set of CRM calls the services rely on.
type Gateway interface {
	GetUser(ctx context.Context, id int64) (*UserProfile, error)
	ListUsers(ctx context.Context, page, perPage int) ([]UserProfile, error)
	CreateUser(ctx context.Context, u UserPayload) error
	UpdateUser(ctx context.Context, id int64, u UserPayload) error
	GetCourses(ctx context.Context, q CourseQuery) ([]Course, error)
	GetCourse(ctx context.Context, id int64) (*Course, error)
	CreateCourse(ctx context.Context, c Course) error
	UpdateCourse(ctx context.Context, id int64, c Course) error
	DeleteCourse(ctx context.Context, id int64) error
	SyncConversation(ctx context.Context, s ConversationSync) error
}

type Client struct {
	http *resty.Client
}

var (
	_ Gateway = (*Client)(nil)
	_ Gateway = Noop{}
)

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{http: c}
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	var errBody errorBody
	req := c.http.R().SetContext(ctx).SetError(&errBody)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("crm request %s %s failed: %w", method, path, err)
	}
	if resp.IsError() {
		msg := errBody.Message
		if msg == "" {
			msg = truncate(resp.String(), 256)
		}
		return &Error{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, resty.MethodGet, "users/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]UserProfile, error) {
	var out struct {
		Data []UserProfile `json:"data"`
	}
	query := map[string]string{
		"page":     strconv.Itoa(pageOrDefault(page)),
		"per_page": strconv.Itoa(perPageOrDefault(perPage)),
	}
	if err := c.do(ctx, resty.MethodGet, "users", query, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) CreateUser(ctx context.Context, u UserPayload) error {
	return c.do(ctx, resty.MethodPost, "users", nil, u, nil)
}

func (c *Client) UpdateUser(ctx context.Context, id int64, u UserPayload) error {
	return c.do(ctx, resty.MethodPut, "users/"+strconv.FormatInt(id, 10), nil, u, nil)
}

// GetCourses returns the "data" array of the paginated course listing.
func (c *Client) GetCourses(ctx context.Context, q CourseQuery) ([]Course, error) {
	var out struct {
		Data []Course `json:"data"`
	}
	query := map[string]string{
		"page":     strconv.Itoa(pageOrDefault(q.Page)),
		"per_page": strconv.Itoa(perPageOrDefault(q.PerPage)),
	}
	if q.Category != "" {
		query["category"] = q.Category
	}
	if q.Difficulty != "" {
		query["difficulty"] = q.Difficulty
	}
	if err := c.do(ctx, resty.MethodGet, "courses", query, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Data), nil
}

func (c *Client) GetCourse(ctx context.Context, id int64) (*Course, error) {
	var out Course
	if err := c.do(ctx, resty.MethodGet, "courses/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCourse(ctx context.Context, course Course) error {
	return c.do(ctx, resty.MethodPost, "courses", nil, course, nil)
}

func (c *Client) UpdateCourse(ctx context.Context, id int64, course Course) error {
	return c.do(ctx, resty.MethodPut, "courses/"+strconv.FormatInt(id, 10), nil, course, nil)
}

func (c *Client) DeleteCourse(ctx context.Context, id int64) error {
	return c.do(ctx, resty.MethodDelete, "courses/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) SyncConversation(ctx context.Context, s ConversationSync) error {
	return c.do(ctx, resty.MethodPost, "conversations/sync", nil, s, nil)
}

// Noop stands in when no CRM is configured. Reads report ErrNotConfigured,
// writes succeed without doing anything.
type Noop struct{}

func (Noop) GetUser(context.Context, int64) (*UserProfile, error) { return nil, ErrNotConfigured }
func (Noop) ListUsers(context.Context, int, int) ([]UserProfile, error) {
	return nil, ErrNotConfigured
}
func (Noop) CreateUser(context.Context, UserPayload) error { return nil }
func (Noop) UpdateUser(context.Context, int64, UserPayload) error { return nil }
func (Noop) GetCourses(context.Context, CourseQuery) ([]Course, error) {
	return nil, ErrNotConfigured
}
func (Noop) GetCourse(context.Context, int64) (*Course, error) { return nil, ErrNotConfigured }
func (Noop) CreateCourse(context.Context, Course) error { return nil }
func (Noop) UpdateCourse(context.Context, int64, Course) error { return nil }
func (Noop) DeleteCourse(context.Context, int64) error { return nil }
func (Noop) SyncConversation(context.Context, ConversationSync) error { return nil }

func pageOrDefault(p int) int {
	if p <= 0 {
		return 1
	}
	return p
}

func perPageOrDefault(p int) int {
	if p <= 0 {
		return 100
	}
	return p
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
