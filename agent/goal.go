package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Goal is a named objective injected into every decision prompt.
// Lower Priority values are more important.
type Goal struct {
	Priority    int    `json:"priority" yaml:"priority" koanf:"priority"`
	Name        string `json:"name" yaml:"name" koanf:"name"`
	Description string `json:"description" yaml:"description" koanf:"description"`
}

// SortGoals returns a copy of goals ordered by ascending priority. Goals with
// equal priority keep their declaration order.
func SortGoals(goals []Goal) []Goal {
	sorted := make([]Goal, len(goals))
	copy(sorted, goals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// renderGoals formats goals for the system message.
func renderGoals(goals []Goal) string {
	sorted := SortGoals(goals)
	parts := make([]string, 0, len(sorted))
	for _, g := range sorted {
		parts = append(parts, fmt.Sprintf("%s:\n%s", g.Name, g.Description))
	}
	return strings.Join(parts, "\n\n")
}
