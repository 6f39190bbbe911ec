// Package planner turns the latest user message into a short list of
// research task labels shown while the answer is generated.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finch/internal/provider"
	"finch/pkg/logger"
)

// MaxTasks caps the number of labels returned by Plan.
const MaxTasks = 3

var (
	// ErrNoTasks is returned when the model produced no usable label.
	ErrNoTasks = errors.New("planner: no tasks")
	// ErrEmptyQuery is returned for a blank user message.
	ErrEmptyQuery = errors.New("planner: empty query")
)

const systemPrompt = `You are a financial reasoning agent. Break the user's query into 1 to 3 research tasks.

Rules:
- Each task name is 3 to 7 words in the present progressive ("Retrieving AAPL financials", "Analyzing AAPL performance trends").
- Data collection tasks come before analysis tasks.
- Use ticker symbols when the query names a public company.
- Respond with JSON only, in the form {"tasks": [{"task_name": "..."}]}.`

// Task is one planned step.
type Task struct {
	Name string `json:"task_name"`
}

// Planner asks a model for task labels.
type Planner struct {
	provider provider.Provider
	model    string
}

// New creates a Planner that calls model through p.
func New(p provider.Provider, model string) *Planner {
	return &Planner{provider: p, model: model}
}

// Plan returns 1 to MaxTasks labels for query. Labels are trimmed, empty and
// duplicate labels are dropped. An error means the caller should proceed
// without tasks.
func (p *Planner) Plan(ctx context.Context, query string) ([]string, error) {
	ctx, span := otel.Tracer("finch/planner").Start(ctx, "planner.plan")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	resp, err := p.provider.Chat(ctx, provider.ChatRequest{
		Model:    p.model,
		System:   systemPrompt,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: query}},
		JSONMode: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan request failed")
		return nil, fmt.Errorf("plan: %w", err)
	}

	tasks, err := ParseTasks(resp.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan parse failed")
		logger.Ctx(ctx).Debug().Err(err).Str("content", resp.Content).Msg("Planner returned unusable output")
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("planner.tasks", tasks))
	return tasks, nil
}

// ParseTasks extracts labels from either a bare task array or an object
// with a "tasks" field.
func ParseTasks(content string) ([]string, error) {
	content = strings.TrimSpace(stripFence(content))

	var list []Task
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoTasks, err)
		}
	} else {
		var wrapped struct {
			Tasks []Task `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoTasks, err)
		}
		list = wrapped.Tasks
	}

	names := Normalize(list)
	if len(names) == 0 {
		return nil, ErrNoTasks
	}
	return names, nil
}

// Normalize trims, de-duplicates and caps task labels.
func Normalize(list []Task) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, MaxTasks)
	for _, t := range list {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if len(out) == MaxTasks {
			break
		}
	}
	return out
}

// stripFence removes a ```json fence some models wrap JSON output in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// ReplaceQuery returns the message that replaces the user's query in
// general mode: the task labels joined by newlines.
func ReplaceQuery(tasks []string) string {
	return strings.Join(tasks, "\n")
}
