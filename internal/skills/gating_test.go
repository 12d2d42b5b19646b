package skills

import (
	"testing"
	"time"
)

func TestRequiredBinsSkipsAlwaysAndDisabled(t *testing.T) {
	entries := map[string]EntryConfig{
		"always":   {Always: true},
		"disabled": {Enabled: boolPtr(false)},
	}
	g := NewGatingContext(entries, nil)

	all := []Skill{
		{Name: "always", Requires: []string{"ffmpeg"}},
		{Name: "disabled", Requires: []string{"imagemagick"}},
		{Name: "plain", Requires: []string{"jq", "curl"}},
		{Name: "no-requires"},
	}

	bins := g.RequiredBins(all)
	want := map[string]bool{"jq": true, "curl": true}
	if len(bins) != len(want) {
		t.Fatalf("RequiredBins = %v, want exactly %v", bins, want)
	}
	for _, b := range bins {
		if !want[b] {
			t.Fatalf("unexpected bin %q in %v", b, bins)
		}
	}
}

func TestRequiredBinsPrefersEntryOverride(t *testing.T) {
	entries := map[string]EntryConfig{
		"custom": {Requires: []string{"override-bin"}},
	}
	g := NewGatingContext(entries, nil)
	bins := g.RequiredBins([]Skill{{Name: "custom", Requires: []string{"default-bin"}}})
	if len(bins) != 1 || bins[0] != "override-bin" {
		t.Fatalf("RequiredBins = %v, want entry override to win", bins)
	}
}

func TestEligibleDeniesRequiresGatedSkillUntilProbed(t *testing.T) {
	probes := NewProbeTracker(0)
	g := NewGatingContext(nil, probes)
	skill := Skill{Name: "shell-tools", Requires: []string{"jq"}}

	ok, _ := g.Eligible(skill, []string{"node-1"})
	if ok {
		t.Fatalf("skill should be ineligible before any probe result is known")
	}

	pending := probes.Dispatch("node-1", []string{"jq"}, time.Now())
	probes.Resolve(ProbeResult{ProbeID: pending.ProbeID, NodeID: "node-1", OK: true, Bins: map[string]bool{"jq": true}}, time.Now())
	ok, node := g.Eligible(skill, []string{"node-1"})
	if !ok || node != "node-1" {
		t.Fatalf("Eligible = (%v, %q), want (true, node-1) once the probe resolves", ok, node)
	}
}

func boolPtr(b bool) *bool { return &b }
