package parsing

import "strings"

// skillAliases maps common skill name variants to canonical names.
var skillAliases = map[string]string{
	"golang":     "Go",
	"go lang":    "Go",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
	"k8s":        "Kubernetes",
	"kubernetes": "Kubernetes",
	"react.js":   "React",
	"reactjs":    "React",
	"vue.js":     "Vue",
	"vuejs":      "Vue",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"postgres":   "PostgreSQL",
	"postgresql": "PostgreSQL",
}

// NormalizeSkillName maps a skill to its canonical form. Unknown
// single-word lowercase names get their first letter capitalized; anything
// else is only trimmed.
func NormalizeSkillName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := skillAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	if trimmed == strings.ToLower(trimmed) && !strings.Contains(trimmed, " ") {
		return strings.ToUpper(trimmed[:1]) + trimmed[1:]
	}
	return trimmed
}

// NormalizeSkills normalizes each skill name and drops duplicates,
// preserving first-seen order.
func NormalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return skills
	}
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, skill := range skills {
		normalized := NormalizeSkillName(skill)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, normalized)
	}
	return out
}
