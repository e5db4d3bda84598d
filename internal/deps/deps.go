// Package deps reports the availability of external tools the configured
// engine backend shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"gifsmith/internal/config"
)

// Requirement names an external binary a backend depends on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig returns the requirements implied by the configured backend. The
// native backend runs in-process and needs nothing external.
func ForConfig(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Engine.Backend != "ffmpeg" {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Engine.FFmpegBinary,
			Description: "Composites overlays and re-encodes GIF output",
		},
	}
}

// CheckBinaries evaluates the requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}
