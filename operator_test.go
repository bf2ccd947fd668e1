package seiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeTra(t *testing.T, dir, instance string, doc traDocument) {
	t.Helper()
	instanceDir := filepath.Join(dir, instance)
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(instanceDir, instance+".tra"), encoded, 0o644); err != nil {
		t.Fatal(err)
	}
}

func sampleTraDoc(prDescription string) traDocument {
	return traDocument{Trajectory: []compressedEntry{
		{Role: "system", Content: "you are an agent"},
		{Role: "user", Content: "<pr_description>\n" + prDescription + "\n</pr_description>"},
		{Role: "assistant", Thought: "let's look", Action: "cat file.py"},
	}}
}

func TestDefaultDiscover_FindsInstancesWithTra(t *testing.T) {
	workspace := t.TempDir()
	iterDir := filepath.Join(workspace, "iteration_1")
	writeTra(t, iterDir, "inst-a", sampleTraDoc("fix the bug"))

	contexts, err := DefaultDiscover(workspace, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contexts) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(contexts))
	}
	if contexts[0].ProblemStatement != "fix the bug" {
		t.Errorf("got %q", contexts[0].ProblemStatement)
	}
}

func TestDefaultDiscover_FirstIterationHasNoPrevious(t *testing.T) {
	contexts, err := DefaultDiscover(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contexts != nil {
		t.Errorf("expected no instances for iteration 1, got %v", contexts)
	}
}

func TestDefaultDiscover_MissingPreviousIterationDirIsEmpty(t *testing.T) {
	contexts, err := DefaultDiscover(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contexts) != 0 {
		t.Errorf("expected no instances, got %v", contexts)
	}
}

// stubOperator is a minimal Template-family Operator for exercising
// RunOperator without involving a concrete strategy's LLM prompts.
type stubOperator struct {
	name     string
	prefix   string
	contexts []InstanceContext
	generate func(InstanceContext) (string, error)
}

func (s *stubOperator) Name() string          { return s.name }
func (s *stubOperator) Family() Family         { return FamilyTemplate }
func (s *stubOperator) StrategyPrefix() string { return s.prefix }
func (s *stubOperator) Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error) {
	return s.contexts, nil
}
func (s *stubOperator) GenerateContent(ctx context.Context, ic InstanceContext) (string, error) {
	return s.generate(ic)
}

func TestRunOperator_WritesTemplateYAML(t *testing.T) {
	workspace := t.TempDir()
	op := &stubOperator{
		name:   "stub",
		prefix: "TEST STRATEGY",
		contexts: []InstanceContext{
			{InstanceName: "inst-1", ProblemStatement: "p1"},
			{InstanceName: "inst-2", ProblemStatement: "p2"},
		},
		generate: func(ic InstanceContext) (string, error) {
			return "generated content for " + ic.InstanceName, nil
		},
	}

	result, err := RunOperator(context.Background(), op, workspace, 3, 2, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TemplatesDir == "" {
		t.Fatal("expected non-empty TemplatesDir")
	}

	raw, err := os.ReadFile(filepath.Join(result.TemplatesDir, "inst-1.yaml"))
	if err != nil {
		t.Fatalf("expected yaml file written: %v", err)
	}
	var cfg templateAgentConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if !strings.HasPrefix(cfg.Agent.Templates.SystemTemplate, templateSystemPreamble) {
		t.Errorf("missing fixed preamble in %q", cfg.Agent.Templates.SystemTemplate)
	}
	if !strings.Contains(cfg.Agent.Templates.SystemTemplate, "TEST STRATEGY") {
		t.Errorf("missing strategy prefix in %q", cfg.Agent.Templates.SystemTemplate)
	}
	if !strings.Contains(cfg.Agent.Templates.SystemTemplate, "generated content for inst-1") {
		t.Errorf("missing generated content in %q", cfg.Agent.Templates.SystemTemplate)
	}
}

func TestRunOperator_SkipsEmptyProblemStatement(t *testing.T) {
	workspace := t.TempDir()
	called := false
	op := &stubOperator{
		name:   "stub",
		prefix: "X",
		contexts: []InstanceContext{
			{InstanceName: "inst-empty", ProblemStatement: ""},
		},
		generate: func(ic InstanceContext) (string, error) {
			called = true
			return "x", nil
		},
	}

	_, err := RunOperator(context.Background(), op, workspace, 2, 1, nil, nil)
	if err == nil {
		t.Fatal("expected OperatorSkip when all instances have empty problem statements")
	}
	if _, ok := err.(*OperatorSkip); !ok {
		t.Fatalf("expected *OperatorSkip, got %T", err)
	}
	if called {
		t.Error("GenerateContent should not be called for empty problem statement")
	}
}

func TestRunOperator_SkipsWhenAllInstancesFail(t *testing.T) {
	workspace := t.TempDir()
	op := &stubOperator{
		name:   "stub",
		prefix: "X",
		contexts: []InstanceContext{
			{InstanceName: "inst-1", ProblemStatement: "p"},
		},
		generate: func(ic InstanceContext) (string, error) {
			return "", nil
		},
	}

	_, err := RunOperator(context.Background(), op, workspace, 2, 1, nil, nil)
	if _, ok := err.(*OperatorSkip); !ok {
		t.Fatalf("expected *OperatorSkip, got %T (%v)", err, err)
	}
}

// TestRun_WorkerCountNeutrality exercises §8's worker-count-neutrality
// property: the set of files an operator produces must not depend on
// num_workers, only their content ordering within the run may differ.
func TestRun_WorkerCountNeutrality(t *testing.T) {
	contexts := make([]InstanceContext, 0, 10)
	for i := 0; i < 10; i++ {
		name := "inst-" + strings.Repeat("x", i+1)
		contexts = append(contexts, InstanceContext{InstanceName: name, ProblemStatement: "p"})
	}

	runWith := func(workers int) map[string]bool {
		workspace := t.TempDir()
		op := &stubOperator{
			name:     "stub",
			prefix:   "X",
			contexts: contexts,
			generate: func(ic InstanceContext) (string, error) {
				return "content for " + ic.InstanceName, nil
			},
		}
		result, err := RunOperator(context.Background(), op, workspace, 2, workers, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries, err := os.ReadDir(result.TemplatesDir)
		if err != nil {
			t.Fatal(err)
		}
		files := make(map[string]bool, len(entries))
		for _, e := range entries {
			files[e.Name()] = true
		}
		return files
	}

	single := runWith(1)
	multi := runWith(8)

	if len(single) != len(multi) {
		t.Fatalf("file count differs: workers=1 -> %d, workers=8 -> %d", len(single), len(multi))
	}
	for name := range single {
		if !multi[name] {
			t.Errorf("file %q produced with workers=1 but not workers=8", name)
		}
	}
}

func TestWriteEnhanceJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enhance.json")
	analyses := map[string]EnhanceAnalysis{
		"inst-1": {
			ApproachSummary: "summary",
			ModifiedFiles:   []string{"a.py"},
		},
	}
	if err := WriteEnhanceJSON(path, analyses); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]struct {
		ClaudeAnalysis EnhanceAnalysis `json:"claude_analysis"`
		IsCalled       *string         `json:"is_called"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	entry, ok := decoded["inst-1"]
	if !ok {
		t.Fatal("expected inst-1 entry")
	}
	if entry.IsCalled != nil {
		t.Error("expected is_called to be null")
	}
	if entry.ClaudeAnalysis.ApproachSummary != "summary" {
		t.Errorf("got %q", entry.ClaudeAnalysis.ApproachSummary)
	}
}
