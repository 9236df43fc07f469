package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
)

type CourseInput struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	DifficultyLevel string  `json:"difficulty_level"`
	DurationHours   float64 `json:"duration_hours"`
	Price           float64 `json:"price"`
}

type CourseService struct {
	store  *store.Store
	mirror *CRMMirror
	log    *logger.Logger
}

func NewCourseService(st *store.Store, mirror *CRMMirror, log *logger.Logger) *CourseService {
	return &CourseService{store: st, mirror: mirror, log: log.With("service", "CourseService")}
}

func (s *CourseService) Create(ctx context.Context, actorID int64, in CourseInput) (*store.Course, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if err := validateCourseNumbers(&in.DurationHours, &in.Price); err != nil {
		return nil, err
	}

	course := &store.Course{
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		DifficultyLevel: in.DifficultyLevel,
		DurationHours:   in.DurationHours,
		Price:           in.Price,
		InstructorID:    actorID,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, err
	}

	mirrored := toCRMCourse(course)
	s.mirror.run("create_course", course.ID, func(ctx context.Context, g crm.Gateway) error {
		return g.CreateCourse(ctx, mirrored)
	})
	s.log.Info("Course created", "course_id", course.ID, "instructor_id", actorID)
	return course, nil
}

func (s *CourseService) Get(ctx context.Context, id int64) (*store.Course, error) {
	course, err := s.store.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course %d", ErrNotFound, id)
	}
	return course, nil
}

func (s *CourseService) List(ctx context.Context, filter store.CourseFilter) ([]store.Course, error) {
	skip, limit, err := NormalizePage(filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Skip, filter.Limit = skip, limit
	return s.store.ListCourses(ctx, filter)
}

func (s *CourseService) ListByInstructor(ctx context.Context, instructorID int64, skip, limit int) ([]store.Course, error) {
	return s.List(ctx, store.CourseFilter{InstructorID: &instructorID, Skip: skip, Limit: limit})
}

// Update applies a partial change. Only the course's instructor may edit it.
func (s *CourseService) Update(ctx context.Context, actorID, id int64, upd store.CourseUpdate) (*store.Course, error) {
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidArgument)
		}
		upd.Title = &t
	}
	if err := validateCourseNumbers(upd.DurationHours, upd.Price); err != nil {
		return nil, err
	}
	current, err := s.ownedCourse(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if upd.Empty() {
		return current, nil
	}

	course, err := s.store.UpdateCourse(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: course %d", ErrNotFound, id)
		}
		return nil, err
	}

	mirrored := toCRMCourse(course)
	s.mirror.run("update_course", id, func(ctx context.Context, g crm.Gateway) error {
		return g.UpdateCourse(ctx, id, mirrored)
	})
	return course, nil
}

func (s *CourseService) Delete(ctx context.Context, actorID, id int64) error {
	if _, err := s.ownedCourse(ctx, actorID, id); err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: course %d", ErrNotFound, id)
		}
		return err
	}

	s.mirror.run("delete_course", id, func(ctx context.Context, g crm.Gateway) error {
		return g.DeleteCourse(ctx, id)
	})
	s.log.Info("Course deleted", "course_id", id, "instructor_id", actorID)
	return nil
}

func (s *CourseService) ownedCourse(ctx context.Context, actorID, id int64) (*store.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actorID {
		return nil, fmt.Errorf("%w: only the instructor can modify course %d", ErrForbidden, id)
	}
	return course, nil
}

func validateCourseNumbers(duration, price *float64) error {
	if duration != nil && *duration < 0 {
		return fmt.Errorf("%w: duration_hours must be >= 0", ErrInvalidArgument)
	}
	if price != nil && *price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidArgument)
	}
	return nil
}

func toCRMCourse(c *store.Course) crm.Course {
	return crm.Course{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Category:        c.Category,
		DifficultyLevel: c.DifficultyLevel,
		DurationHours:   c.DurationHours,
		Price:           c.Price,
		InstructorID:    c.InstructorID,
	}
}
