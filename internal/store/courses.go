package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const courseColumns = "id, title, description, category, difficulty_level, duration_hours, price, instructor_id, created_at, updated_at"

// CreateCourse inserts c and fills in its id and creation time.
func (s *Store) CreateCourse(ctx context.Context, c *Course) error {
	c.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx,
		s.q(`INSERT INTO courses (title, description, category, difficulty_level, duration_hours, price, instructor_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		c.Title, c.Description, c.Category, c.DifficultyLevel, c.DurationHours, c.Price, c.InstructorID, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

func (s *Store) GetCourseByID(ctx context.Context, id int64) (*Course, error) {
	var course Course
	err := s.db.GetContext(ctx, &course, s.q("SELECT "+courseColumns+" FROM courses WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query course: %w", err)
	}
	return &course, nil
}

// ListCourses applies equality filters and pagination. A zero Limit returns every match.
func (s *Store) ListCourses(ctx context.Context, f CourseFilter) ([]Course, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Difficulty != "" {
		where = append(where, "difficulty_level = ?")
		args = append(args, f.Difficulty)
	}
	if f.InstructorID != nil {
		where = append(where, "instructor_id = ?")
		args = append(args, *f.InstructorID)
	}

	query := "SELECT " + courseColumns + " FROM courses"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Skip)
	}

	courses := []Course{}
	if err := s.db.SelectContext(ctx, &courses, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	return courses, nil
}

func (s *Store) UpdateCourse(ctx context.Context, id int64, upd CourseUpdate) (*Course, error) {
	var (
		sets []string
		args []interface{}
	)
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.DifficultyLevel != nil {
		add("difficulty_level", *upd.DifficultyLevel)
	}
	if upd.DurationHours != nil {
		add("duration_hours", *upd.DurationHours)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if len(sets) == 0 {
		course, err := s.GetCourseByID(ctx, id)
		if err == nil && course == nil {
			return nil, ErrNotFound
		}
		return course, err
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.q("UPDATE courses SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetCourseByID(ctx, id)
}

func (s *Store) DeleteCourse(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
