package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/tasks"
	"github.com/go-chi/chi/v5"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2048
)

type taskRequest struct {
	TaskType    tasks.TaskType `json:"taskType"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
}

func validateTask(req *taskRequest) string {
	if !tasks.ValidTaskType(req.TaskType) {
		return "Task type is not recognized."
	}
	if req.Title == "" || utf8.RuneCountInString(req.Title) > maxTitleLength {
		return "Title must be non-empty and a maximum of 100 characters."
	}
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		return "Description must be a maximum of 2048 characters."
	}
	return ""
}

// taskID parses the id path parameter; only positive integers are accepted.
func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func userID(r *http.Request) int64 {
	id, _ := UserIDFromContext(r.Context())
	return id
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.List(r.Context(), userID(r))
	if err != nil {
		s.logger.Error(r.Context(), "failed to list tasks", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	var criteria tasks.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	list, err := s.tasks.Search(r.Context(), userID(r), criteria)
	if err != nil {
		s.logger.Error(r.Context(), "failed to search tasks", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ID must be a positive integer")
		return
	}

	task, err := s.tasks.Get(r.Context(), id, userID(r))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error(r.Context(), "failed to fetch task", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if msg := validateTask(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	task, err := s.tasks.Create(r.Context(), &tasks.Task{
		UserID:      userID(r),
		TaskType:    req.TaskType,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateTask) {
			respondError(w, http.StatusConflict, "A task with this type and title already exists.")
			return
		}
		s.logger.Error(r.Context(), "failed to create task", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ID must be a positive integer")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if msg := validateTask(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	uid := userID(r)

	existing, err := s.tasks.Get(r.Context(), id, uid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error(r.Context(), "failed to fetch task", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	// An unchanged payload is acknowledged without touching the store or the
	// cache.
	if existing.TaskType == req.TaskType && existing.Title == req.Title &&
		existing.Description == req.Description {
		respondMessage(w, http.StatusOK, "No changes detected")
		return
	}

	err = s.tasks.Update(r.Context(), &tasks.Task{
		ID:          id,
		UserID:      uid,
		TaskType:    req.TaskType,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			respondError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, common.ErrDuplicateTask):
			respondError(w, http.StatusConflict, "A task with this type and title already exists.")
		default:
			s.logger.Error(r.Context(), "failed to update task", "task_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	respondMessage(w, http.StatusOK, "Task updated successfully")
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ID must be a positive integer")
		return
	}

	uid := userID(r)

	if _, err := s.tasks.Get(r.Context(), id, uid); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error(r.Context(), "failed to fetch task", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	if err := s.tasks.Delete(r.Context(), id, uid); err != nil {
		s.logger.Error(r.Context(), "failed to delete task", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]tasks.TaskType{"taskTypes": tasks.TaskTypes()})
}
