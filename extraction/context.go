package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// contextFor loads the entity behind key and renders it as extraction input.
func contextFor(ctx context.Context, store storage.Store, key core.ArtifactKey) (string, error) {
	switch key.SourceType {
	case core.SourceTypeSource:
		src, err := store.GetSource(ctx, key.SourceID)
		if err != nil {
			return "", err
		}
		units, err := store.GetUnits(ctx, key.SourceID)
		if err != nil {
			return "", err
		}
		return sourceContext(src, units), nil
	case core.SourceTypeArtifact:
		artifact, err := store.GetArtifact(ctx, key.SourceID)
		if err != nil {
			return "", err
		}
		return artifactContext(artifact), nil
	default:
		return "", core.ValidateSourceType(key.SourceType)
	}
}

// sourceContext renders the title, structured fields and ordered units.
func sourceContext(src *core.Source, units []*core.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", src.Title)
	if src.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", src.Summary)
	}
	fmt.Fprintf(&b, "Kind: %s\n", src.Kind)
	if !src.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Created: %s\n", src.CreatedAt.UTC().Format(time.RFC3339))
	}
	for _, k := range sortedKeys(src.Metadata) {
		fmt.Fprintf(&b, "%s: %s\n", k, src.Metadata[k])
	}

	if len(units) > 0 {
		b.WriteString("\n")
	}
	for _, u := range units {
		if u.Sender != "" {
			fmt.Fprintf(&b, "[%d] %s: %s\n", u.Position, u.Sender, u.Content)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", u.Position, u.Content)
		}
	}
	return b.String()
}

// artifactContext renders an artifact's title and content fields.
func artifactContext(a *core.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Kind: %s\n", a.Kind)
	for _, k := range sortedKeys(a.Content) {
		if k == "title" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", k, formatValue(a.Content[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
