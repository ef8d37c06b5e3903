// Package teams holds the read-only known-teams registry that extracted
// team labels are resolved against at commit time.
package teams

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// Team is one entry in the known-teams roster.
type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Registry is an ordered roster; order matters because the first match
// wins.
type Registry struct {
	teams  []Team
	logger *slog.Logger
}

func NewRegistry(teams []Team, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{teams: teams, logger: logger}
}

// Teams returns a copy of the roster in registry order.
func (r *Registry) Teams() []Team {
	out := make([]Team, len(r.teams))
	copy(out, r.teams)
	return out
}

// Resolve matches a raw extracted label against the roster: case-sensitive
// substring match in either direction, first match wins. No match falls
// back to the raw label with a synthesized identifier.
func (r *Registry) Resolve(label string) entity.TeamIdentity {
	trimmed := strings.TrimSpace(label)
	if trimmed != "" {
		for _, t := range r.teams {
			if strings.Contains(trimmed, t.DisplayName) || strings.Contains(t.DisplayName, trimmed) {
				return entity.TeamIdentity{ID: t.ID, DisplayName: t.DisplayName}
			}
		}
	}
	id := entity.TeamIdentity{
		ID:          "adhoc-" + uuid.New().String()[:8],
		DisplayName: trimmed,
		Synthesized: true,
	}
	r.logger.Warn("teams.unresolved_label", "label", label, "synthesized_id", id.ID)
	return id
}
