package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finch/pkg/logger"
)

// ProjectSeparator divides the visible editor text from the serialized
// attachment map in a project content blob.
const ProjectSeparator = "\n\n--- DO NOT EDIT BELOW THIS LINE ---\n"

// DefaultSkillName labels document-mode turns without a skill.
const DefaultSkillName = "specialized analysis"

var (
	fileMarkerRe = regexp.MustCompile(`\[FILE:[^\]]+\]`)
	documentTmpl = template.Must(template.New("document").Parse(documentTemplate))
)

// ParseProjectContent flattens a project blob into prompt text. Inline
// [FILE:...] markers are removed from the visible part and attachments are
// appended in filename order. A malformed attachment section is logged and
// skipped; the visible text is still returned.
func ParseProjectContent(blob string) string {
	visible, attachments, hasFiles := strings.Cut(blob, ProjectSeparator)
	out := strings.TrimSpace(fileMarkerRe.ReplaceAllString(visible, ""))
	if !hasFiles {
		return out
	}

	attachments = strings.TrimSpace(attachments)
	if attachments == "" {
		return out
	}
	var files map[string]string
	if err := json.Unmarshal([]byte(attachments), &files); err != nil {
		logger.Warn().Err(err).Msg("Failed to parse project attachments")
		return out
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(out)
	for _, name := range names {
		fmt.Fprintf(&b, "\n\n--- File: %s ---\n%s\n--- End of file ---\n", name, files[name])
	}
	return b.String()
}

// Build lays out a document-mode prompt. The prompt is never empty: missing
// context is replaced by EmptyContextPlaceholder and the skill block is
// omitted when skill is nil.
func Build(projectContent string, skill *Skill) string {
	data := struct {
		Base    string
		Context string
		Skill   *Skill
	}{Base: DocumentBasePrompt, Context: projectContent, Skill: skill}
	if strings.TrimSpace(data.Context) == "" {
		data.Context = EmptyContextPlaceholder
	}

	var b strings.Builder
	if err := documentTmpl.Execute(&b, data); err != nil {
		// The template is static and its data has no methods that can fail.
		panic(err)
	}
	return b.String()
}

// Result is an assembled document-mode prompt.
type Result struct {
	Prompt     string
	SkillName  string
	HasContext bool
}

// Assembler merges project context and a skill into one system prompt.
type Assembler struct {
	projects ProjectLoader
	skills   SkillLoader
}

// NewAssembler creates an Assembler. Either loader may be nil.
func NewAssembler(projects ProjectLoader, skills SkillLoader) *Assembler {
	return &Assembler{projects: projects, skills: skills}
}

// Assemble loads the project and skill and builds the prompt. Load failures
// degrade to an empty context or no skill; they are logged and recorded on
// the span but never returned.
func (a *Assembler) Assemble(ctx context.Context, projectID, skillID string) Result {
	ctx, span := otel.Tracer("finch/prompt").Start(ctx, "prompt.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID), attribute.String("skill.id", skillID))

	log := logger.Ctx(ctx)
	var content string
	if projectID != "" && a.projects != nil {
		blob, err := a.projects.ProjectContent(ctx, projectID)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrProjectContext, projectID, err)
			log.Warn().Err(err).Msg("Project context not loaded")
			span.RecordError(err)
			span.SetStatus(codes.Error, "project load failed")
		} else {
			content = ParseProjectContent(blob)
		}
	}

	var skill *Skill
	if skillID != "" && a.skills != nil {
		s, err := a.skills.SkillByID(ctx, skillID)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrSkill, skillID, err)
			log.Warn().Err(err).Msg("Skill not loaded")
			span.RecordError(err)
			span.SetStatus(codes.Error, "skill load failed")
		} else {
			skill = s
		}
	}

	res := Result{Prompt: Build(content, skill), SkillName: DefaultSkillName, HasContext: content != ""}
	if skill != nil && skill.Name != "" {
		res.SkillName = skill.Name
	}
	span.SetAttributes(attribute.Int("prompt.chars", len(res.Prompt)))
	return res
}
