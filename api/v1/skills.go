package v1

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"finch/internal/auth"
	"finch/internal/gateway/handlers"
	"finch/internal/skills"
	"finch/internal/storage"
)

// HandleListSkills lists the caller's skills. A user without skills gets
// the default set.
func (r *Router) HandleListSkills(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	list, err := r.db.ListSkillsOrSeed(req.Context(), user.ID)
	if err != nil {
		sendStorageError(w, req, err, "skills")
		return
	}
	handlers.SendJSON(w, http.StatusOK, SkillsResponse{Skills: list})
}

// HandleSaveSkill creates a skill or updates the one with the same id or
// name.
func (r *Router) HandleSaveSkill(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	var body SkillRequest
	if err := handlers.DecodeJSON(req, &body); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.Name)
	switch {
	case name == "":
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Skill name is required")
		return
	case len([]rune(name)) > skills.MaxNameLength:
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Skill name is too long")
		return
	case strings.TrimSpace(body.Prompt) == "":
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Skill prompt is required")
		return
	}

	s := &storage.Skill{
		ID:          body.ID,
		UserID:      user.ID,
		Name:        name,
		Description: body.Description,
		Prompt:      body.Prompt,
		Source:      storage.SkillSourceUser,
	}
	if err := r.db.SaveSkill(req.Context(), s); err != nil {
		sendStorageError(w, req, err, "skill")
		return
	}
	handlers.SendJSON(w, http.StatusOK, s)
}

// HandleDeleteSkill deletes an owned skill.
func (r *Router) HandleDeleteSkill(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	if err := r.db.DeleteSkill(req.Context(), mux.Vars(req)["id"], user.ID); err != nil {
		sendStorageError(w, req, err, "skill")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
