package api

import (
	"net/http"
	"net/url"

	"task-manager/errors"
	"task-manager/logger"
	"task-manager/tasks"

	"github.com/gorilla/mux"
)

// TaskIDVar is the route variable holding the task id.
const TaskIDVar = "taskID"

// TaskService is the task manager as seen by the HTTP handlers.
type TaskService interface {
	Create(p tasks.CreateParams) (tasks.Task, error)
	Get(id string) (tasks.Task, bool)
	Update(id string, p tasks.UpdateParams) (tasks.Task, bool, error)
	Delete(id string) bool
	List(f tasks.Filter) []tasks.Task
}

// ListResponse wraps a task listing.
type ListResponse struct {
	Tasks []tasks.Task `json:"tasks"`
	Count int          `json:"count"`
}

// NewListTasksHandler serves GET /tasks.
func NewListTasksHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, taskErr := parseFilter(r.URL.Query())
		if taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}

		list := svc.List(filter)
		respondWithJSON(w, http.StatusOK, ListResponse{Tasks: list, Count: len(list)}, lg)
	}
}

func parseFilter(q url.Values) (tasks.Filter, *errors.TaskError) {
	f := tasks.Filter{
		Status:   tasks.TaskStatus(q.Get("status")),
		Priority: tasks.Priority(q.Get("priority")),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sortBy"),
		SortDir:  q.Get("sortDir"),
	}

	if f.Status != "" && !f.Status.IsValid() {
		return f, errors.NewValidationError("invalid status filter", map[string]any{"status": string(f.Status)})
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return f, errors.NewValidationError("invalid priority filter", map[string]any{"priority": string(f.Priority)})
	}
	if f.SortBy != "" && !tasks.IsSortField(f.SortBy) {
		return f, errors.NewValidationError("invalid sortBy", map[string]any{"sortBy": f.SortBy})
	}
	if f.SortDir != "" && f.SortDir != tasks.SortAsc && f.SortDir != tasks.SortDesc {
		return f, errors.NewValidationError("invalid sortDir", map[string]any{
			"sortDir": f.SortDir,
			"allowed": []string{tasks.SortAsc, tasks.SortDesc},
		})
	}
	return f, nil
}

// NewCreateTaskHandler serves POST /tasks.
func NewCreateTaskHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params tasks.CreateParams
		if taskErr := decodeBody(w, r, &params); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}

		task, err := svc.Create(params)
		if err != nil {
			respondWithErr(w, err, lg)
			return
		}

		w.Header().Set("Location", "/tasks/"+task.ID)
		respondWithJSON(w, http.StatusCreated, task, lg)
	}
}

// NewGetTaskHandler serves GET /tasks/{taskID}.
func NewGetTaskHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := mux.Vars(r)[TaskIDVar]

		task, ok := svc.Get(taskID)
		if !ok {
			respondWithError(w, notFound(taskID), lg)
			return
		}
		respondWithJSON(w, http.StatusOK, task, lg)
	}
}

// NewUpdateTaskHandler serves PATCH and PUT /tasks/{taskID}. Only the
// fields present in the body change.
func NewUpdateTaskHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := mux.Vars(r)[TaskIDVar]

		var params tasks.UpdateParams
		if taskErr := decodeBody(w, r, &params); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}
		if params.IsEmpty() {
			respondWithError(w, errors.NewValidationError("no fields to update", map[string]any{
				"task_id": taskID,
			}), lg)
			return
		}

		task, found, err := svc.Update(taskID, params)
		if !found {
			respondWithError(w, notFound(taskID), lg)
			return
		}
		if err != nil {
			respondWithErr(w, err, lg)
			return
		}
		respondWithJSON(w, http.StatusOK, task, lg)
	}
}

// NewDeleteTaskHandler serves DELETE /tasks/{taskID}.
func NewDeleteTaskHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := mux.Vars(r)[TaskIDVar]

		if !svc.Delete(taskID) {
			respondWithError(w, notFound(taskID), lg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func notFound(taskID string) *errors.TaskError {
	taskErr := errors.NewNotFoundError("task not found")
	taskErr.Details = map[string]any{"task_id": taskID}
	return taskErr
}
