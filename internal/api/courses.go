package api

import (
	"net/http"

	"educrm.io/ai-agent/internal/core"
	"educrm.io/ai-agent/internal/store"
)

func (h *APIHandler) CreateCourseHandler(w http.ResponseWriter, r *http.Request) {
	var in core.CourseInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	course, err := h.courses.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *APIHandler) ListCoursesHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	q := r.URL.Query()
	courses, err := h.courses.List(r.Context(), store.CourseFilter{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Skip:       skip,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *APIHandler) GetCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *APIHandler) ListInstructorCoursesHandler(w http.ResponseWriter, r *http.Request) {
	instructorID, err := pathID(r, "instructorID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	courses, err := h.courses.ListByInstructor(r.Context(), instructorID, skip, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *APIHandler) UpdateCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var upd store.CourseUpdate
	if err := decodeJSON(r, &upd, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	course, err := h.courses.Update(r.Context(), currentUser(r).ID, id, upd)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *APIHandler) DeleteCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.courses.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type RecommendationRequest struct {
	Query      string `json:"query"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

func (h *APIHandler) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	rec, err := h.recommender.Recommend(r.Context(), currentUser(r).ID, req.Query, core.RecommendationFilter{
		Category:   req.Category,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
