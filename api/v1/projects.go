package v1

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"finch/internal/auth"
	"finch/internal/gateway/handlers"
	"finch/internal/storage"
)

// HandleListProjects lists the caller's projects.
func (r *Router) HandleListProjects(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	projects, err := r.db.ListProjects(req.Context(), user.ID)
	if err != nil {
		sendStorageError(w, req, err, "projects")
		return
	}
	if projects == nil {
		projects = []*storage.Project{}
	}
	handlers.SendJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
}

// HandleSaveProject creates a project, or updates the one named by id.
func (r *Router) HandleSaveProject(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	var body ProjectRequest
	if err := handlers.DecodeJSON(req, &body); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Project name is required")
		return
	}

	status := http.StatusOK
	if body.ID == "" {
		body.ID = uuid.NewString()
		status = http.StatusCreated
	}
	p := &storage.Project{ID: body.ID, UserID: user.ID, Name: body.Name, Content: body.Content}
	if err := r.db.SaveProject(req.Context(), p); err != nil {
		sendStorageError(w, req, err, "project")
		return
	}
	handlers.SendJSON(w, status, p)
}

// HandleGetProject returns an owned project.
func (r *Router) HandleGetProject(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	p, err := r.db.GetProject(req.Context(), mux.Vars(req)["id"])
	if err == nil && p.UserID != user.ID {
		err = storage.ErrForbidden
	}
	if err != nil {
		sendStorageError(w, req, err, "project")
		return
	}
	handlers.SendJSON(w, http.StatusOK, p)
}

// HandleDeleteProject deletes an owned project.
func (r *Router) HandleDeleteProject(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	if err := r.db.DeleteProject(req.Context(), mux.Vars(req)["id"], user.ID); err != nil {
		sendStorageError(w, req, err, "project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
