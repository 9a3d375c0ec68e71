package prompts

import (
	"regexp"
	"sort"
	"strings"
)

// variablePattern matches substitution placeholders like {language} or
// {target_language}.
var variablePattern = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

// ExtractVariables extracts placeholder names from a template string.
// For example, "Translate from {source_language} to {target_language}"
// returns ["source_language", "target_language"].
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string

	for _, match := range matches {
		if len(match) > 1 {
			name := match[1]
			if !seen[name] {
				seen[name] = true
				vars = append(vars, name)
			}
		}
	}

	sort.Strings(vars)
	return vars
}

// Render substitutes placeholder values into a template. Placeholders with
// no value in vars are left intact.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
