package skills

// GatingContext evaluates whether a discovered skill is eligible for use in
// a given turn: "always" skills are unconditionally eligible, explicitly
// disabled skills never are, and everything else requires every binary it
// names in Requires to be present on at least one capable node, per the
// most recent probe result.
type GatingContext struct {
	entries map[string]EntryConfig
	probes  *ProbeTracker
}

// NewGatingContext builds a gating context from the configured per-skill
// entries and the tracker holding the latest probe results.
func NewGatingContext(entries map[string]EntryConfig, probes *ProbeTracker) *GatingContext {
	if entries == nil {
		entries = make(map[string]EntryConfig)
	}
	return &GatingContext{entries: entries, probes: probes}
}

// Eligible reports whether skill may be offered to the agent, and the node
// that should serve it when a remote binary check gates eligibility.
func (g *GatingContext) Eligible(skill Skill, candidateNodeIDs []string) (ok bool, servingNodeID string) {
	entry, hasEntry := g.entries[skill.Key()]
	if hasEntry && entry.Always {
		return true, ""
	}
	if hasEntry && entry.Enabled != nil && !*entry.Enabled {
		return false, ""
	}

	required := skill.Requires
	if hasEntry && len(entry.Requires) > 0 {
		required = entry.Requires
	}
	if len(required) == 0 {
		return true, ""
	}
	if g.probes == nil {
		return false, ""
	}

	for _, nodeID := range candidateNodeIDs {
		status, ok := g.probes.BinStatus(nodeID)
		if !ok {
			continue
		}
		if hasAllBins(status, required) {
			return true, nodeID
		}
	}
	return false, ""
}

// RequiredBins returns the deduplicated set of host binaries that gating
// could need evidence for across all, skipping skills that are always
// eligible, disabled, or require nothing. A freshly connected node is
// probed for exactly this set so Eligible has a BinStatus to check against
// on the very first turn that offers these skills, rather than denying
// every Requires-gated skill until some other codepath happens to probe.
func (g *GatingContext) RequiredBins(all []Skill) []string {
	seen := make(map[string]bool)
	var out []string
	for _, skill := range all {
		entry, hasEntry := g.entries[skill.Key()]
		if hasEntry && entry.Always {
			continue
		}
		if hasEntry && entry.Enabled != nil && !*entry.Enabled {
			continue
		}
		required := skill.Requires
		if hasEntry && len(entry.Requires) > 0 {
			required = entry.Requires
		}
		for _, bin := range required {
			if !seen[bin] {
				seen[bin] = true
				out = append(out, bin)
			}
		}
	}
	return out
}

func hasAllBins(status HostBinStatus, required []string) bool {
	for _, bin := range required {
		if !status.Bins[bin] {
			return false
		}
	}
	return true
}

// Filter returns the subset of skills eligible given the candidate nodes,
// sorted the way List/ForAgent already returns them.
func (g *GatingContext) Filter(all []Skill, candidateNodeIDs []string) []Skill {
	var out []Skill
	for _, s := range all {
		if ok, _ := g.Eligible(s, candidateNodeIDs); ok {
			out = append(out, s)
		}
	}
	return out
}
