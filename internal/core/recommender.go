package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
)

type EnrichmentStatus string

const (
	EnrichmentOK          EnrichmentStatus = "ok"
	EnrichmentUnavailable EnrichmentStatus = "unavailable"
	EnrichmentFailed      EnrichmentStatus = "failed"
)

// Enrichment reports how a CRM lookup went. Reason is set for failures.
type Enrichment struct {
	Status EnrichmentStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}

// UserProfile is the relational user merged with whatever the CRM knows about them.
type UserProfile struct {
	ID               int64    `json:"id"`
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	IsActive         bool     `json:"is_active"`
	Interests        []string `json:"interests"`
	EducationLevel   *string  `json:"education_level"`
	CareerGoals      []string `json:"career_goals"`
	EnrolledCourses  []any    `json:"enrolled_courses"`
	CompletedCourses []any    `json:"completed_courses"`
}

type ProfileResult struct {
	Profile    UserProfile `json:"user_profile"`
	Enrichment Enrichment  `json:"profile_enrichment"`
}

// CourseSummary is a course offered either locally or by the CRM.
type CourseSummary struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	DifficultyLevel string  `json:"difficulty_level"`
	DurationHours   float64 `json:"duration_hours"`
	Price           float64 `json:"price"`
	InstructorID    int64   `json:"instructor_id"`
	Source          string  `json:"source"`
}

type RecommendationFilter struct {
	Category   string
	Difficulty string
}

type Recommendation struct {
	Recommendations   string      `json:"recommendations"`
	UserProfile       UserProfile `json:"user_profile"`
	Query             string      `json:"query"`
	ProfileEnrichment Enrichment  `json:"profile_enrichment"`
	CourseEnrichment  Enrichment  `json:"course_enrichment"`
}

// Orchestrator turns a query, a profile and a catalogue into recommendation text.
type Orchestrator interface {
	Run(ctx context.Context, query string, profile UserProfile, courses []CourseSummary) (string, error)
}

type Recommender struct {
	store        *store.Store
	crm          crm.Gateway
	orchestrator Orchestrator
	log          *logger.Logger
}

func NewRecommender(st *store.Store, gateway crm.Gateway, orchestrator Orchestrator, log *logger.Logger) *Recommender {
	return &Recommender{store: st, crm: gateway, orchestrator: orchestrator, log: log.With("service", "Recommender")}
}

// Recommend gathers the profile and the catalogue concurrently and hands them to the
// orchestrator. CRM problems degrade the enrichment but never fail the request.
func (r *Recommender) Recommend(ctx context.Context, userID int64, query string, filter RecommendationFilter) (*Recommendation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidArgument)
	}

	var (
		profile          *ProfileResult
		courses          []CourseSummary
		courseEnrichment Enrichment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = r.Profile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		courses, courseEnrichment, err = r.availableCourses(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	text, err := r.orchestrator.Run(ctx, query, profile.Profile, courses)
	if err != nil {
		return nil, upstream("recommendation orchestration", err)
	}
	return &Recommendation{
		Recommendations:   text,
		UserProfile:       profile.Profile,
		Query:             query,
		ProfileEnrichment: profile.Enrichment,
		CourseEnrichment:  courseEnrichment,
	}, nil
}

// Profile returns the unified profile of userID. ErrNotFound when the user does not exist.
func (r *Recommender) Profile(ctx context.Context, userID int64) (*ProfileResult, error) {
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	profile := UserProfile{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		IsActive:         user.IsActive,
		Interests:        []string{},
		CareerGoals:      []string{},
		EnrolledCourses:  []any{},
		CompletedCourses: []any{},
	}

	crmUser, err := r.crm.GetUser(ctx, userID)
	enrichment := classifyEnrichment(err)
	switch enrichment.Status {
	case EnrichmentOK:
		profile.Interests = nonNilSlice(crmUser.Interests)
		profile.EducationLevel = crmUser.EducationLevel
		profile.CareerGoals = nonNilSlice(crmUser.CareerGoals)
		profile.EnrolledCourses = nonNilSlice(crmUser.EnrolledCourses)
		profile.CompletedCourses = nonNilSlice(crmUser.CompletedCourses)
	case EnrichmentFailed:
		r.log.Warn("CRM profile lookup failed", "user_id", userID, "error", err)
	}
	return &ProfileResult{Profile: profile, Enrichment: enrichment}, nil
}

// availableCourses merges local and CRM courses; local entries win on id collisions.
func (r *Recommender) availableCourses(ctx context.Context, filter RecommendationFilter) ([]CourseSummary, Enrichment, error) {
	local, err := r.store.ListCourses(ctx, store.CourseFilter{Category: filter.Category, Difficulty: filter.Difficulty})
	if err != nil {
		return nil, Enrichment{}, err
	}

	courses := make([]CourseSummary, 0, len(local))
	seen := make(map[int64]struct{}, len(local))
	for _, c := range local {
		seen[c.ID] = struct{}{}
		courses = append(courses, CourseSummary{
			ID:              c.ID,
			Title:           c.Title,
			Description:     c.Description,
			Category:        c.Category,
			DifficultyLevel: c.DifficultyLevel,
			DurationHours:   c.DurationHours,
			Price:           c.Price,
			InstructorID:    c.InstructorID,
			Source:          "local",
		})
	}

	remote, err := r.crm.GetCourses(ctx, crm.CourseQuery{Category: filter.Category, Difficulty: filter.Difficulty})
	enrichment := classifyEnrichment(err)
	if enrichment.Status == EnrichmentFailed {
		r.log.Warn("CRM course lookup failed", "error", err)
	}
	for _, c := range remote {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		courses = append(courses, CourseSummary{
			ID:              c.ID,
			Title:           c.Title,
			Description:     c.Description,
			Category:        c.Category,
			DifficultyLevel: c.DifficultyLevel,
			DurationHours:   c.DurationHours,
			Price:           c.Price,
			InstructorID:    c.InstructorID,
			Source:          "crm",
		})
	}
	return courses, enrichment, nil
}

func classifyEnrichment(err error) Enrichment {
	switch {
	case err == nil:
		return Enrichment{Status: EnrichmentOK}
	case errors.Is(err, crm.ErrNotConfigured), crm.IsNotFound(err):
		return Enrichment{Status: EnrichmentUnavailable}
	default:
		return Enrichment{Status: EnrichmentFailed, Reason: err.Error()}
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
