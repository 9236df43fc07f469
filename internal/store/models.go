package store

import "time"

type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"hashed_password" json:"-"` // Do not expose this in JSON responses
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Course struct {
	ID              int64      `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Category        string     `db:"category" json:"category"`
	DifficultyLevel string     `db:"difficulty_level" json:"difficulty_level"`
	DurationHours   float64    `db:"duration_hours" json:"duration_hours"`
	Price           float64    `db:"price" json:"price"`
	InstructorID    int64      `db:"instructor_id" json:"instructor_id"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Conversation struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	VectorID  *string    `db:"vector_id" json:"vector_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	Messages  []Message  `db:"-" json:"messages"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	Role           Role      `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter narrows ListCourses. Empty strings and nil pointers mean "no filter".
type CourseFilter struct {
	Category     string
	Difficulty   string
	InstructorID *int64
	Skip         int
	Limit        int
}

// CourseUpdate carries a partial update; nil fields are left untouched.
type CourseUpdate struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Category        *string  `json:"category,omitempty"`
	DifficultyLevel *string  `json:"difficulty_level,omitempty"`
	DurationHours   *float64 `json:"duration_hours,omitempty"`
	Price           *float64 `json:"price,omitempty"`
}

func (u CourseUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.DifficultyLevel == nil && u.DurationHours == nil && u.Price == nil
}

type UserUpdate struct {
	Email        *string
	Username     *string
	PasswordHash *string
	IsActive     *bool
}
