package skills

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager enumerates SKILL.md files under a workspace root (optionally
// per-agent subdirectories) and watches the tree for changes.
type Manager struct {
	root string
	log  *slog.Logger

	mu     sync.RWMutex
	skills map[string]Skill // path -> skill

	watcher *fsnotify.Watcher
}

// NewManager creates a Manager rooted at workspaceRoot. Layout:
// {root}/skills/{name}/SKILL.md (global) and
// {root}/agents/{agentId}/skills/{name}/SKILL.md (agent-scoped).
func NewManager(workspaceRoot string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		root:   workspaceRoot,
		log:    log.With("component", "skills.manager"),
		skills: make(map[string]Skill),
	}
}

// Refresh walks the workspace tree and replaces the discovered skill set.
func (m *Manager) Refresh() error {
	found := make(map[string]Skill)

	globalDir := filepath.Join(m.root, "skills")
	if err := m.walkSkillsDir(globalDir, "", found); err != nil && !os.IsNotExist(err) {
		return err
	}

	agentsDir := filepath.Join(m.root, "agents")
	entries, err := os.ReadDir(agentsDir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			agentID := e.Name()
			dir := filepath.Join(agentsDir, agentID, "skills")
			if err := m.walkSkillsDir(dir, agentID, found); err != nil && !os.IsNotExist(err) {
				m.log.Warn("walk agent skills failed", "agentId", agentID, "error", err)
			}
		}
	}

	m.mu.Lock()
	m.skills = found
	m.mu.Unlock()
	return nil
}

func (m *Manager) walkSkillsDir(dir, agentID string, out map[string]Skill) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillFile := filepath.Join(dir, e.Name(), "SKILL.md")
		skill, err := parseSkillFile(skillFile)
		if err != nil {
			if !os.IsNotExist(err) {
				m.log.Warn("parse skill failed", "file", skillFile, "error", err)
			}
			continue
		}
		skill.AgentID = agentID
		out[skillFile] = skill
	}
	return nil
}

// parseSkillFile reads SKILL.md's minimal frontmatter: a leading
// "---"-delimited block with "name:", "description:", and
// "requires: a, b" lines, falling back to the parent directory name.
func parseSkillFile(path string) (Skill, error) {
	f, err := os.Open(path)
	if err != nil {
		return Skill{}, err
	}
	defer f.Close()

	skill := Skill{Name: filepath.Base(filepath.Dir(path)), Path: path}
	scanner := bufio.NewScanner(f)
	inFrontmatter := false
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "---" {
			if inFrontmatter {
				break
			}
			inFrontmatter = true
			continue
		}
		if !inFrontmatter {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			if value != "" {
				skill.Name = value
			}
		case "description":
			skill.Description = value
		case "requires":
			for _, bin := range strings.Split(value, ",") {
				bin = strings.TrimSpace(bin)
				if bin != "" {
					skill.Requires = append(skill.Requires, bin)
				}
			}
		}
	}
	return skill, scanner.Err()
}

// List returns every discovered skill, agent-scoped ones first so callers
// picking "the" skill for a name can prefer index 0.
func (m *Manager) List() []Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Skill, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].AgentID > out[j].AgentID // non-empty (agent-scoped) sorts first
	})
	return out
}

// ForAgent resolves the effective skill set visible to agentID: for every
// name, the agent-scoped skill wins over a global skill of the same name.
func (m *Manager) ForAgent(agentID string) []Skill {
	byName := make(map[string]Skill)
	for _, s := range m.List() {
		if s.AgentID != "" && s.AgentID != agentID {
			continue
		}
		existing, ok := byName[s.Name]
		if !ok {
			byName[s.Name] = s
			continue
		}
		if existing.AgentID == "" && s.AgentID == agentID && agentID != "" {
			byName[s.Name] = s
		}
	}
	out := make([]Skill, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Watch starts an fsnotify watch over the workspace root, calling Refresh
// (logging failures) whenever a SKILL.md-relevant change is observed. The
// returned stop function closes the watcher.
func (m *Manager) Watch() (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m.watcher = watcher
	if err := watcher.Add(m.root); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := m.Refresh(); err != nil {
						m.log.Warn("refresh on watch event failed", "error", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("watch error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
