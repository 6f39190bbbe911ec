package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/delta"
	"finch/internal/gateway/handlers"
	"finch/internal/gateway/websocket"
	"finch/internal/provider"
	"finch/internal/runner"
	"finch/internal/storage"
	"finch/pkg/logger"
)

// HandleChat starts a turn and streams its deltas as server-sent events.
// Every rejection before the stream opens is a JSON error.
func (r *Router) HandleChat(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "Unauthorized")
		return
	}

	var body ChatRequest
	if err := handlers.DecodeJSON(req, &body); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}
	if body.ID == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "Chat id is required")
		return
	}

	modelID := body.ModelID
	if modelID == "" {
		modelID = r.defaultModel()
	}
	model, ok := provider.Lookup(modelID)
	if !ok {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "Model not found")
		return
	}

	apiKey := body.ModelAPIKey
	if config.IsPlaceholderKey(apiKey) {
		apiKey = r.config.Secrets.ProviderKey(model.Provider)
	}
	if config.IsPlaceholderKey(apiKey) {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeConfiguration,
			fmt.Sprintf("Model API key is required (set %s_API_KEY on the server or enter a key in settings)", strings.ToUpper(model.Provider)))
		return
	}

	mode, err := runner.ParseMode(body.Mode)
	if err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, err.Error())
		return
	}

	messages := body.providerMessages()
	if _, _, ok := runner.LastUserMessage(messages); !ok {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "No user message found")
		return
	}

	p, err := r.providers(model, apiKey)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("model", model.ID).Msg("Failed to create provider")
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Failed to initialize the model provider")
		return
	}

	registry, err := r.tools(body.FinancialDatasetsAPIKey)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to build tool registry")
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Failed to initialize tools")
		return
	}

	sink, err := delta.NewSSESink(w)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Streaming not supported")
		return
	}

	// Nothing is saved until the turn can actually stream.
	turn := &runner.Turn{
		ID:        uuid.NewString(),
		ChatID:    body.ID,
		UserID:    user.ID,
		Mode:      mode,
		Messages:  messages,
		Model:     model,
		ProjectID: body.ProjectID,
		SkillID:   body.SkillID,
	}
	if err := r.orchestrator.Begin(ctx, turn, p); err != nil {
		switch {
		case errors.Is(err, storage.ErrForbidden):
			handlers.SendError(w, http.StatusForbidden, handlers.ErrCodeForbidden, "This chat belongs to another user")
		case errors.Is(err, runner.ErrNoUserMessage):
			handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "No user message found")
		default:
			logger.Ctx(ctx).Error().Err(err).Str("chat_id", body.ID).Msg("Failed to start turn")
			handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Failed to start the chat")
		}
		return
	}

	enc := delta.NewEncoder(sink)
	if r.hub != nil {
		enc.Observe(websocket.NewDeltaSink(r.hub, turn.ChatID))
	}

	// The request context ends the turn when the client goes away.
	if err := r.orchestrator.Run(ctx, turn, p, registry, enc); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("chat_id", turn.ChatID).Int("deltas", enc.Sent()).Msg("Turn ended with error")
		return
	}
	logger.Ctx(ctx).Debug().Str("chat_id", turn.ChatID).Int("deltas", enc.Sent()).Msg("Turn streamed")
}

func (r *Router) defaultModel() string {
	if r.config != nil && r.config.Model.Default != "" {
		return r.config.Model.Default
	}
	return provider.DefaultModelID
}

// HandleStopChat cancels the running turn of a chat. Stopping a chat with
// no running turn succeeds.
func (r *Router) HandleStopChat(w http.ResponseWriter, req *http.Request) {
	user, chat, ok := r.ownedChat(w, req, mux.Vars(req)["id"])
	if !ok {
		return
	}
	stopped := r.orchestrator.Cancels().Cancel(chat.ID)
	logger.Ctx(req.Context()).Info().Str("chat_id", chat.ID).Str("user_id", user.ID).Bool("stopped", stopped).Msg("Stop requested")
	handlers.SendJSON(w, http.StatusOK, StopResponse{Stopped: stopped})
}

// HandleDeleteChat deletes a chat and its messages.
func (r *Router) HandleDeleteChat(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	id := mux.Vars(req)["id"]
	if err := r.db.DeleteChat(req.Context(), id, user.ID); err != nil {
		sendStorageError(w, req, err, "chat")
		return
	}
	r.orchestrator.Cancels().Cancel(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistory lists the caller's chats.
func (r *Router) HandleHistory(w http.ResponseWriter, req *http.Request) {
	user, _ := auth.FromContext(req.Context())
	chats, err := r.db.ListChats(req.Context(), user.ID)
	if err != nil {
		sendStorageError(w, req, err, "chats")
		return
	}
	if chats == nil {
		chats = []*storage.Chat{}
	}
	handlers.SendJSON(w, http.StatusOK, HistoryResponse{Chats: chats})
}

// HandleMessages lists the messages of an owned chat.
func (r *Router) HandleMessages(w http.ResponseWriter, req *http.Request) {
	chatID := req.URL.Query().Get("chatId")
	if chatID == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "chatId is required")
		return
	}
	_, chat, ok := r.ownedChat(w, req, chatID)
	if !ok {
		return
	}
	msgs, err := r.db.ListMessages(req.Context(), chat.ID)
	if err != nil {
		sendStorageError(w, req, err, "messages")
		return
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	handlers.SendJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

// ownedChat loads chatID for the caller, writing the error response when
// it cannot.
func (r *Router) ownedChat(w http.ResponseWriter, req *http.Request, chatID string) (auth.User, *storage.Chat, bool) {
	user, _ := auth.FromContext(req.Context())
	chat, err := r.db.GetOwnedChat(req.Context(), chatID, user.ID)
	if err != nil {
		sendStorageError(w, req, err, "chat")
		return user, nil, false
	}
	return user, chat, true
}

func sendStorageError(w http.ResponseWriter, req *http.Request, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, strings.ToUpper(what[:1])+what[1:]+" not found")
	case errors.Is(err, storage.ErrForbidden):
		handlers.SendError(w, http.StatusForbidden, handlers.ErrCodeForbidden, "Access denied")
	default:
		logger.Ctx(req.Context()).Error().Err(err).Str("resource", what).Msg("Storage operation failed")
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "Failed to access "+what)
	}
}
