package extractor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrUnparseable = goerr.New("extractor output is not parseable")

// stripFences removes a surrounding markdown code fence such as ```json ... ```
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseCandidates reads the model output and returns at most MaxCandidates
// coerced candidates. Items failing the schema are dropped. An error is
// returned only when the output is not JSON of a recognized shape.
func ParseCandidates(raw string) ([]model.Candidate, error) {
	var doc any
	if err := json.Unmarshal([]byte(stripFences(raw)), &doc); err != nil {
		return nil, goerr.Wrap(ErrUnparseable, "invalid JSON", goerr.V("error", err.Error()))
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["items"].([]any)
		if !ok {
			return nil, goerr.Wrap(ErrUnparseable, "object has no items array")
		}
		items = list
	default:
		return nil, goerr.Wrap(ErrUnparseable, "unexpected JSON shape")
	}

	schema, err := resolvedItemSchema()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve item schema")
	}

	var candidates []model.Candidate
	for _, item := range items {
		if len(candidates) >= MaxCandidates {
			break
		}
		if err := schema.Validate(item); err != nil {
			continue
		}

		fields := item.(map[string]any)
		candidates = append(candidates, model.Candidate{
			Type:       model.MemoryType(fields["type"].(string)),
			Text:       truncate(strings.TrimSpace(fields["text"].(string)), MaxCandidateTextLen),
			Importance: coerceImportance(fields["importance"]),
			Tags:       coerceTags(fields["tags"]),
		})
	}

	return candidates, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func coerceImportance(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return model.DefaultImportance
		}
		f = parsed
	default:
		return model.DefaultImportance
	}

	if math.IsNaN(f) || f == 0 {
		return model.DefaultImportance
	}
	return min(max(int(math.Round(f)), model.MinImportance), model.MaxImportance)
}

func coerceTags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}

	tags := []string{}
	for _, t := range list {
		if len(tags) >= model.MaxTags {
			break
		}
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}
