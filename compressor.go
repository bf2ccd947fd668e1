package seiter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// trajEntry is one element of a raw .traj document's history array. Fields
// are typed loosely (interface{}) since SWE-agent's trace format varies by
// role and tool.
type trajEntry struct {
	Role    string      `json:"role"`
	Thought string      `json:"thought,omitempty"`
	Action  string      `json:"action,omitempty"`
	Content interface{} `json:"content,omitempty"`
}

type trajDocument struct {
	History []trajEntry `json:"history"`
}

// compressedEntry is one element of a .tra document's Trajectory array.
// Only retained fields are present; Role is always set.
type compressedEntry struct {
	Role    string `json:"role"`
	Thought string `json:"thought,omitempty"`
	Action  string `json:"action,omitempty"`
	Content string `json:"content,omitempty"`
}

// traDocument is the compressed output of Compress.
type traDocument struct {
	Trajectory []compressedEntry `json:"Trajectory"`
}

// CompressionStats reports token and entry counts for a compressed document.
type CompressionStats struct {
	TotalTokens  int `json:"total_tokens"`
	HistoryItems int `json:"history_items"`
}

const (
	strReplaceEditorMarker = "str_replace_editor"
	truncateLenThreshold   = 350
	truncateMinOriginal    = 300
	truncateSavingsRatio   = 0.20
	truncateMarker         = "... [TRUNCATED] ..."
)

// Compress converts a raw .traj document (JSON bytes with a "history"
// array) into a compressed .tra document plus token/entry-count stats,
// applying the rules in order: drop roleless entries, keep only
// thought+action for assistant / content for other roles, flatten tool
// list-of-text-blocks content, truncate oversized or editor-dump strings,
// and drop entries that retain nothing beyond role.
func Compress(trajJSON []byte) ([]byte, CompressionStats, error) {
	var doc trajDocument
	if err := json.Unmarshal(trajJSON, &doc); err != nil {
		return nil, CompressionStats{}, &ErrLLM{Provider: "compressor", Message: "invalid .traj JSON: " + err.Error()}
	}

	out := traDocument{Trajectory: make([]compressedEntry, 0, len(doc.History))}
	totalTokens := 0

	for _, e := range doc.History {
		if e.Role == "" {
			continue
		}

		var c compressedEntry
		c.Role = e.Role

		switch e.Role {
		case "assistant":
			c.Thought = truncateField(e.Thought)
			c.Action = truncateField(e.Action)
		default:
			c.Content = truncateField(flattenContent(e.Role, e.Content))
		}

		if c.Thought == "" && c.Action == "" && c.Content == "" {
			continue
		}

		totalTokens += countTokens(c.Thought) + countTokens(c.Action) + countTokens(c.Content)
		out.Trajectory = append(out.Trajectory, c)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, CompressionStats{}, err
	}
	return encoded, CompressionStats{TotalTokens: totalTokens, HistoryItems: len(out.Trajectory)}, nil
}

// flattenContent normalizes an entry's content field to a flat string. For
// role=tool, a list of {type:"text", text} blocks collapses to the first
// text item's value; any other shape stringifies via fmt-free JSON text so
// non-string content never silently disappears.
func flattenContent(role string, content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case nil:
		return ""
	case []interface{}:
		if role == "tool" {
			for _, item := range v {
				if block, ok := item.(map[string]interface{}); ok {
					if t, _ := block["type"].(string); t == "text" {
						if text, ok := block["text"].(string); ok {
							return text
						}
					}
				}
			}
			return ""
		}
		b, _ := json.Marshal(v)
		return string(b)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// truncateField applies the compressor's truncation rule to a single
// string field: shortened only when it contains the literal
// "str_replace_editor" or exceeds 350 characters, and only when the
// original is at least 300 characters and the truncated form saves more
// than 20% of its bytes; otherwise the string passes through unchanged.
func truncateField(s string) string {
	if s == "" {
		return s
	}
	if !strings.Contains(s, strReplaceEditorMarker) && len([]rune(s)) <= truncateLenThreshold {
		return s
	}
	if len([]rune(s)) < truncateMinOriginal {
		return s
	}

	runes := []rune(s)
	n := len(runes)

	head := clamp(30, 150, int(0.20*float64(n)))
	tail := clamp(30, 100, int(0.10*float64(n)))
	if head+tail >= n {
		return s
	}

	truncated := string(runes[:head]) + truncateMarker + string(runes[n-tail:])
	savings := 1 - float64(len(truncated))/float64(len(s))
	if savings <= truncateSavingsRatio {
		return s
	}
	return truncated
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compressor runs Compress over every instance directory in an iteration
// directory, writing a sibling .tra file for each .traj file found.
type Compressor struct {
	Logger *slog.Logger
}

// NewCompressor returns a Compressor logging to logger, or to slog.Default
// if logger is nil.
func NewCompressor(logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{Logger: logger}
}

// CompressIterationDir scans the direct subdirectories of iterationDir
// (each a candidate instance directory, per C3's discovery rule) and
// compresses any "<instance>.traj" file found into "<instance>.tra" plus
// accompanying stats. An instance directory without a .traj file is
// skipped silently; an unreadable or unparsable .traj file is logged and
// skipped, not fatal; either way the instance contributes nothing
// downstream. Returns the number of .tra files written.
func (c *Compressor) CompressIterationDir(iterationDir string) (int, error) {
	entries, err := os.ReadDir(iterationDir)
	if err != nil {
		return 0, fmt.Errorf("read iteration dir %s: %w", iterationDir, err)
	}

	written := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		instance := entry.Name()
		instanceDir := filepath.Join(iterationDir, instance)
		trajPath := filepath.Join(instanceDir, instance+".traj")

		raw, err := os.ReadFile(trajPath)
		if err != nil {
			if !os.IsNotExist(err) {
				c.Logger.Warn("compressor: failed reading .traj", "instance", instance, "error", err)
			}
			continue
		}

		compressed, stats, err := Compress(raw)
		if err != nil {
			c.Logger.Warn("compressor: failed compressing trajectory", "instance", instance, "error", err)
			continue
		}

		traPath := filepath.Join(instanceDir, instance+".tra")
		if err := os.WriteFile(traPath, compressed, 0o644); err != nil {
			c.Logger.Warn("compressor: failed writing .tra", "instance", instance, "error", err)
			continue
		}

		c.Logger.Info("compressor: compressed trajectory", "instance", instance,
			"total_tokens", stats.TotalTokens, "history_items", stats.HistoryItems)
		written++
	}
	return written, nil
}

// countTokens counts whitespace/word-boundary tokens in s after NFC
// normalization, matching the compressor's token-accounting contract: a
// rough, locale-stable proxy for LLM token usage, not an exact tokenizer
// count.
func countTokens(s string) int {
	if s == "" {
		return 0
	}
	normalized := norm.NFC.String(s)
	count := 0
	inToken := false
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			count++
			inToken = true
		}
	}
	return count
}
