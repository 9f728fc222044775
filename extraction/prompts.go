package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/recollect/core"
)

// PromptProvider supplies the instruction text sent with each extraction.
type PromptProvider interface {
	Prompt(ctx context.Context, kind core.SourceType) (string, error)
}

const sourcePrompt = `You are reviewing an archived conversation or document.
Identify the durable learnings it contains: facts, techniques, decisions and
explanations that would still be useful to someone reading them months later.
Ignore greetings, small talk and anything specific to a single moment.
Use kind "learning" for each artifact.`

const artifactPrompt = `You are reviewing a previously extracted learning.
Identify the broader topics it belongs to so related learnings can be grouped.
Each topic should be general enough to cover other learnings as well.
Use kind "topic" for each artifact.`

// StaticPrompts serves templates from memory.
type StaticPrompts map[core.SourceType]string

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() StaticPrompts {
	return StaticPrompts{
		core.SourceTypeSource:   sourcePrompt,
		core.SourceTypeArtifact: artifactPrompt,
	}
}

// Prompt returns the template for kind.
func (p StaticPrompts) Prompt(_ context.Context, kind core.SourceType) (string, error) {
	prompt, ok := p[kind]
	if !ok || strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w for %q", ErrNoPrompt, kind)
	}
	return prompt, nil
}

// FilePrompts reads templates from <Dir>/<kind>.txt. A missing or blank
// file falls back to the built-in template.
type FilePrompts struct {
	Dir string
}

// Prompt returns the file's contents or the built-in template.
func (p FilePrompts) Prompt(ctx context.Context, kind core.SourceType) (string, error) {
	if err := core.ValidateSourceType(kind); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, string(kind)+".txt"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return DefaultPrompts().Prompt(ctx, kind)
	case err != nil:
		return "", fmt.Errorf("reading prompt for %s: %w", kind, err)
	}
	if prompt := strings.TrimSpace(string(data)); prompt != "" {
		return prompt, nil
	}
	return DefaultPrompts().Prompt(ctx, kind)
}
