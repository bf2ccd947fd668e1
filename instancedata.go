package seiter

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxArtifactBytes bounds how much of a problem/tra/traj/patch file is read
// into memory; a caller cannot distinguish a truncated read from a full
// one. This exists to bound operator LLM context, not to protect against
// malicious input.
const maxArtifactBytes = 50000

var prDescriptionPattern = regexp.MustCompile(`(?s)<pr_description>(.*?)</pr_description>`)

// ArtifactSet is the resolved set of per-instance artifacts an instance
// directory contributes: a problem statement, a raw trajectory, a
// compressed trajectory, and a patch/prediction.
type ArtifactSet struct {
	InstanceName string

	Problem string
	HasProblem bool

	TraContent string
	HasTra     bool

	TrajContent string
	HasTraj     bool

	PatchContent string
	HasPatch     bool

	AvailableExtensions []string
}

// InstanceDataManager resolves problem/tra/traj/patch artifacts for
// instance directories, applying the fixed resolution order for problem
// statements and patches.
type InstanceDataManager struct {
	Logger *slog.Logger
}

// NewInstanceDataManager returns a manager logging to logger, or to
// slog.Default if logger is nil.
func NewInstanceDataManager(logger *slog.Logger) *InstanceDataManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstanceDataManager{Logger: logger}
}

// GetInstanceData resolves the artifact set for the instance directory at
// path (basename is the instance id). When loadAll is false, only the
// available-extensions scan runs; every content field is left empty. This
// mirrors load_all=False's lazy-load intent, useful when a caller only
// needs a completeness check.
func (m *InstanceDataManager) GetInstanceData(path string, loadAll bool) ArtifactSet {
	name := filepath.Base(path)
	set := ArtifactSet{InstanceName: name}
	set.AvailableExtensions = m.scanAvailableExtensions(path, name)

	if !loadAll {
		return set
	}

	if problem, ok := m.resolveProblem(path, name); ok {
		set.Problem = problem
		set.HasProblem = true
	}
	if tra, ok := m.readArtifact(path, name, "tra"); ok {
		set.TraContent = tra
		set.HasTra = true
	}
	if traj, ok := m.readArtifact(path, name, "traj"); ok {
		set.TrajContent = traj
		set.HasTraj = true
	}
	if patch, ok := m.resolvePatch(path, name); ok {
		set.PatchContent = patch
		set.HasPatch = true
	}
	return set
}

// GetIterationInstances enumerates the direct subdirectories of
// iterationDir, each a candidate instance directory; it does not recurse.
// A missing iterationDir logs a warning and returns an empty slice rather
// than an error.
func (m *InstanceDataManager) GetIterationInstances(iterationDir string) []ArtifactSet {
	entries, err := os.ReadDir(iterationDir)
	if err != nil {
		m.Logger.Warn("instance data: iteration directory missing", "dir", iterationDir, "error", err)
		return nil
	}

	var sets []ArtifactSet
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sets = append(sets, m.GetInstanceData(filepath.Join(iterationDir, entry.Name()), true))
	}
	return sets
}

// Completeness is the result of ValidateCompleteness: a 0-100 score over
// {problem, tra, patch} plus the names of whichever are missing. traj is
// informational only and never affects the score.
type Completeness struct {
	Score   float64
	Missing []string
}

// ValidateCompleteness scores an ArtifactSet over the three
// scheduler-relevant artifacts: problem, tra, and patch. traj does not
// count toward the score.
func ValidateCompleteness(set ArtifactSet) Completeness {
	type check struct {
		present bool
		name    string
	}
	checks := []check{
		{set.HasProblem, "problem_description"},
		{set.HasTra, "tra_content"},
		{set.HasPatch, "patch_content"},
	}

	present := 0
	var missing []string
	for _, c := range checks {
		if c.present {
			present++
		} else {
			missing = append(missing, c.name)
		}
	}

	return Completeness{
		Score:   float64(present) / float64(len(checks)) * 100,
		Missing: missing,
	}
}

func (m *InstanceDataManager) scanAvailableExtensions(path, name string) []string {
	exts := []string{"problem", "tra", "traj", "pred", "patch"}
	var available []string
	for _, ext := range exts {
		if _, err := os.Stat(filepath.Join(path, name+"."+ext)); err == nil {
			available = append(available, ext)
		}
	}
	return available
}

// resolveProblem implements the problem resolution order: (a) <id>.problem
// file, (b) <pr_description> extracted from .traj's second history turn,
// (c) an external JSON config hook that is intentionally left unimplemented
// (always returns none) per the spec's explicit Open Question decision.
func (m *InstanceDataManager) resolveProblem(path, name string) (string, bool) {
	if content, ok := m.readArtifact(path, name, "problem"); ok {
		return strings.TrimSpace(content), true
	}
	if problem, ok := m.extractProblemFromTraj(path, name); ok {
		return problem, true
	}
	return m.problemFromJSONConfig(path, name)
}

func (m *InstanceDataManager) extractProblemFromTraj(path, name string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(path, name+".traj"))
	if err != nil {
		return "", false
	}

	var doc trajDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		m.Logger.Debug("instance data: could not parse .traj for problem extraction", "instance", name, "error", err)
		return "", false
	}
	if len(doc.History) < 2 {
		return "", false
	}

	text := flattenContent(doc.History[1].Role, doc.History[1].Content)
	match := prDescriptionPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// problemFromJSONConfig is the unimplemented external-config hook; it
// always reports no problem found.
func (m *InstanceDataManager) problemFromJSONConfig(path, name string) (string, bool) {
	return "", false
}

// resolvePatch implements the patch resolution order: <id>.patch first,
// then <id>.pred.
func (m *InstanceDataManager) resolvePatch(path, name string) (string, bool) {
	if content, ok := m.readArtifact(path, name, "patch"); ok {
		return content, true
	}
	if content, ok := m.readArtifact(path, name, "pred"); ok {
		return content, true
	}
	return "", false
}

// readArtifact reads <path>/<name>.<ext>, truncating to maxArtifactBytes.
// A missing file is not an error: it simply means the artifact is absent.
func (m *InstanceDataManager) readArtifact(path, name, ext string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(path, name+"."+ext))
	if err != nil {
		return "", false
	}
	if len(raw) > maxArtifactBytes {
		raw = raw[:maxArtifactBytes]
	}
	return string(raw), true
}
