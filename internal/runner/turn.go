package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finch/internal/delta"
	"finch/internal/planner"
	"finch/internal/prompt"
	"finch/internal/provider"
	"finch/internal/storage"
	"finch/internal/tools"
	"finch/pkg/logger"
)

// Mode selects the turn pipeline.
type Mode string

const (
	// ModeGeneral plans tasks and answers with tools.
	ModeGeneral Mode = "general"
	// ModeDocument answers from project context and a skill, without tools.
	ModeDocument Mode = "document"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode accepts general, document and its alias canvas. Empty means
// general.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general":
		return ModeGeneral, nil
	case "document", "canvas":
		return ModeDocument, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Turn is one request/response cycle of a chat.
type Turn struct {
	ID        string
	ChatID    string
	UserID    string
	Mode      Mode
	Messages  []provider.Message
	Model     provider.Model
	ProjectID string
	SkillID   string

	// UserMessageID is set by Begin.
	UserMessageID string
}

// LastUserMessage returns the index and content of the most recent user
// message.
func LastUserMessage(msgs []provider.Message) (int, string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.RoleUser {
			return i, msgs[i].Content, true
		}
	}
	return -1, "", false
}

// Store is the persistence the orchestrator needs.
type Store interface {
	MessageStore
	GetChat(ctx context.Context, id string) (*storage.Chat, error)
	CreateChat(ctx context.Context, id, userID, title string) (*storage.Chat, error)
}

// Orchestrator wires the per-turn components together.
type Orchestrator struct {
	store     Store
	persister *Persister
	assembler *prompt.Assembler
	cancels   *CancelRegistry
	cfg       Config
	promptCfg prompt.PromptConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store Store, assembler *prompt.Assembler, cancels *CancelRegistry, cfg Config, promptCfg prompt.PromptConfig) *Orchestrator {
	if cancels == nil {
		cancels = NewCancelRegistry()
	}
	if assembler == nil {
		assembler = prompt.NewAssembler(nil, nil)
	}
	return &Orchestrator{
		store:     store,
		persister: NewPersister(store),
		assembler: assembler,
		cancels:   cancels,
		cfg:       cfg.withDefaults(),
		promptCfg: promptCfg,
	}
}

// Cancels returns the registry Stop requests go through.
func (o *Orchestrator) Cancels() *CancelRegistry { return o.cancels }

// Begin runs the pre-stream steps: the chat is created with a generated
// title on first use and the user's message is saved. A chat owned by
// another user yields storage.ErrForbidden.
func (o *Orchestrator) Begin(ctx context.Context, t *Turn, p provider.Provider) error {
	_, content, ok := LastUserMessage(t.Messages)
	if !ok {
		return ErrNoUserMessage
	}

	chat, err := o.store.GetChat(ctx, t.ChatID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		title := GenerateTitle(ctx, p, t.Model.APIIdentifier, content)
		if _, err := o.store.CreateChat(ctx, t.ChatID, t.UserID, title); err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load chat: %w", err)
	case chat.UserID != t.UserID:
		return storage.ErrForbidden
	}

	t.UserMessageID = uuid.NewString()
	msg := &storage.Message{ID: t.UserMessageID, Role: provider.RoleUser, Content: content}
	if err := o.store.SaveMessages(ctx, t.ChatID, []*storage.Message{msg}); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	return nil
}

// Run streams the turn into enc. Every path ends with done, and loading is
// always cleared before it. The returned error is for logging; the client
// has already been told.
func (o *Orchestrator) Run(ctx context.Context, t *Turn, p provider.Provider, registry *tools.Registry, enc *delta.Encoder) error {
	ctx, release := o.cancels.Register(ctx, t.ChatID)
	defer release()

	ctx = logger.Get().With().Str("chat_id", t.ChatID).Str("turn_id", t.ID).Str("mode", string(t.Mode)).Logger().WithContext(ctx)
	ctx = tools.WithUserID(tools.WithChatID(ctx, t.ChatID), t.UserID)
	ctx, span := otel.Tracer("finch/runner").Start(ctx, "turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.id", t.ChatID),
		attribute.String("turn.mode", string(t.Mode)),
		attribute.String("model", t.Model.ID),
	)

	term := &terminal{enc: enc}
	if t.UserMessageID != "" {
		o.emit(ctx, enc, delta.UserMessageID(t.UserMessageID))
	}

	req, executor, err := o.prepare(ctx, t, p, registry, enc)
	if err != nil {
		if ctx.Err() != nil {
			logger.Ctx(ctx).Info().Msg("Turn stopped before generation")
			term.stop(ctx)
			return ctx.Err()
		}
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to prepare turn")
		span.RecordError(err)
		term.fail(ctx, userMessage(err))
		return err
	}

	driver := NewDriver(p, executor, enc, o.cfg)
	out, err := driver.Run(ctx, req)
	if err != nil {
		// Every resolution of the first-content race has already cleared
		// loading.
		term.cleared = driver.FirstContent().Resolved()
		if ctx.Err() != nil {
			logger.Ctx(ctx).Info().Msg("Turn stopped")
			term.stop(ctx)
			return ctx.Err()
		}
		logger.Ctx(ctx).Error().Err(err).Msg("Generation failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		term.fail(ctx, userMessage(err))
		return err
	}

	// Persistence uses a context that survives a Stop arriving after the
	// stream completed.
	ids, err := o.persister.Persist(context.WithoutCancel(ctx), t.ChatID, out.Messages)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to save response messages")
		span.RecordError(err)
	}
	for _, id := range ids {
		o.emit(ctx, enc, delta.MessageAnnotation{MessageIDFromServer: id})
	}
	term.finish(ctx)
	return err
}

// prepare builds the generation request for the turn's mode and publishes
// the initial loading state.
func (o *Orchestrator) prepare(ctx context.Context, t *Turn, p provider.Provider, registry *tools.Registry, enc *delta.Encoder) (GenerateRequest, *tools.Executor, error) {
	req := GenerateRequest{Model: t.Model.APIIdentifier, Messages: append([]provider.Message(nil), t.Messages...)}
	idx, query, ok := LastUserMessage(req.Messages)
	if !ok {
		return req, nil, ErrNoUserMessage
	}

	if t.Mode == ModeDocument {
		res := o.assembler.Assemble(ctx, t.ProjectID, t.SkillID)
		req.System = res.Prompt
		o.emit(ctx, enc, delta.QueryLoading{IsLoading: true, TaskNames: []string{"Running " + res.SkillName}})
		return req, nil, nil
	}

	o.emit(ctx, enc, delta.QueryLoading{IsLoading: true, TaskNames: []string{}})
	tasks, err := planner.New(p, t.Model.APIIdentifier).Plan(ctx, query)
	switch {
	case err != nil && ctx.Err() != nil:
		return req, nil, ctx.Err()
	case err != nil:
		logger.Ctx(ctx).Warn().Err(err).Msg("Planning failed; answering the original message")
	default:
		o.emit(ctx, enc, delta.QueryLoading{IsLoading: true, TaskNames: tasks})
		req.Messages[idx].Content = planner.ReplaceQuery(tasks)
	}

	system, err := prompt.NewSystemPromptBuilder(o.promptCfg, registry).Build()
	if err != nil {
		return req, nil, err
	}
	req.System = system

	if registry == nil || registry.Len() == 0 {
		return req, nil, nil
	}
	if req.Tools, err = registry.ToProviderTools(); err != nil {
		return req, nil, err
	}
	return req, tools.NewExecutor(registry, tools.NewDedupCache(), enc, o.cfg.ToolTimeout), nil
}

func (o *Orchestrator) emit(ctx context.Context, enc *delta.Encoder, d delta.Delta) {
	if err := enc.Emit(d); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("type", string(d.Type())).Msg("Delta not delivered")
	}
}

// terminal writes the closing deltas of a turn exactly once. The failure
// and stop paths clear loading first unless the driver already did.
type terminal struct {
	once    sync.Once
	enc     *delta.Encoder
	cleared bool
}

func (t *terminal) close(ctx context.Context, clearLoading bool, write func() error) {
	t.once.Do(func() {
		if !t.enc.Writable() {
			logger.Ctx(ctx).Debug().Err(t.enc.Err()).Msg("Stream not writable; terminal deltas dropped")
			return
		}
		if clearLoading && !t.cleared {
			if err := t.enc.QueryLoading(false, nil); err != nil {
				logger.Ctx(ctx).Debug().Err(err).Msg("Terminal delta not delivered")
				return
			}
		}
		if err := write(); err != nil {
			logger.Ctx(ctx).Debug().Err(err).Msg("Terminal delta not delivered")
		}
	})
}

func (t *terminal) finished() error {
	if err := t.enc.Finish(); err != nil {
		return err
	}
	return t.enc.Done()
}

func (t *terminal) finish(ctx context.Context) { t.close(ctx, false, t.finished) }

func (t *terminal) stop(ctx context.Context) { t.close(ctx, true, t.finished) }

func (t *terminal) fail(ctx context.Context, msg string) {
	t.close(ctx, true, func() error { return t.enc.Fail(msg) })
}

// genericFailure is shown for failures that carry no user-facing text.
const genericFailure = "Something went wrong while generating the answer. Please send the message again."

// userMessage renders err for the client with a corrective hint. Internal
// error text is never shown.
func userMessage(err error) string {
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return "Error while processing the request: " + pe.UserMessage()
	}
	return "Error while processing the request: " + genericFailure
}
