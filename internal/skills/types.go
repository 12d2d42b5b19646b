// Package skills implements workspace skill enumeration, binary-probe
// dispatch to capable nodes, and gating eligibility evaluation.
//
// Discovery walks a workspace directory for SKILL.md files (a frontmatter
// convention) and fsnotify watches it for changes; GatingContext is
// generalized from local exec.LookPath probes to remote node.probe round
// trips, since skill binaries live on the node host, not the gateway
// process.
package skills

import "time"

// Skill is one discovered SKILL.md entry.
type Skill struct {
	Name        string   `json:"name"`
	AgentID     string   `json:"agentId,omitempty"` // empty = global skill
	Path        string   `json:"path"`
	Description string   `json:"description,omitempty"`
	Requires    []string `json:"requires,omitempty"` // required host binaries
}

// Key returns the identity a config.SkillEntryConfig override matches
// against: the skill name alone, so one entry applies to agent-scoped and
// global skills of that name alike.
func (s Skill) Key() string { return s.Name }

// EntryConfig mirrors config.SkillEntryConfig to avoid an import cycle
// with internal/config (config does not need to know about skills).
type EntryConfig struct {
	Enabled  *bool
	Always   bool
	Requires []string
}

// ProbeResult is one node's answer to a probe.
type ProbeResult struct {
	ProbeID string
	NodeID  string
	OK      bool
	Bins    map[string]bool
}

// HostBinStatus is a node's most recently probed binary availability.
type HostBinStatus struct {
	Bins      map[string]bool
	UpdatedAt time.Time
}
