package detect

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the structured header of a focus artifact.
type frontmatter struct {
	Status string `yaml:"status"`
}

// parseFrontmatterStatus extracts the status field from a leading yaml
// frontmatter block, or "" when the document has none or it fails to parse.
func parseFrontmatterStatus(artifact string) string {
	body := strings.TrimPrefix(artifact, "\ufeff")
	if !strings.HasPrefix(body, "---\n") && !strings.HasPrefix(body, "---\r\n") {
		return ""
	}

	rest := body[strings.Index(body, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return ""
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fm.Status))
}

// checklistProgress counts markdown checklist items in an artifact.
func checklistProgress(artifact string) (total, done int) {
	for _, line := range strings.Split(artifact, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 5 {
			continue
		}
		if trimmed[0] != '-' && trimmed[0] != '*' {
			continue
		}
		rest := strings.TrimSpace(trimmed[1:])
		switch {
		case strings.HasPrefix(rest, "[ ]"):
			total++
		case strings.HasPrefix(rest, "[x]") || strings.HasPrefix(rest, "[X]"):
			total++
			done++
		}
	}
	return total, done
}
