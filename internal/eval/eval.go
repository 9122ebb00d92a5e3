// Package eval provides an offline evaluation harness: canned prompts
// replayed against the assistant, scored by keyword presence and tool
// usage. It catches prompt or catalog regressions before deploy.
package eval

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted evaluation case.
type Scenario struct {
	Name          string   `yaml:"name"`
	Prompt        string   `yaml:"prompt"`
	Keywords      []string `yaml:"keywords"`       // all must appear in the answer, case-insensitive
	ExpectToolUse bool     `yaml:"expect_tool_use"`
}

// LoadSuite reads a scenario suite from a YAML file: a list of scenario
// documents with name, prompt, keywords, and expect_tool_use fields.
func LoadSuite(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var scenarios []Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("suite %s has no scenarios", path)
	}
	for i, sc := range scenarios {
		if sc.Name == "" || sc.Prompt == "" {
			return nil, fmt.Errorf("suite %s: scenario %d missing name or prompt", path, i)
		}
	}
	return scenarios, nil
}

// ChatFunc runs one prompt and reports the answer and how many tool
// invocations it took.
type ChatFunc func(ctx context.Context, prompt string) (answer string, toolCalls int, err error)

// Result is the outcome of one scenario.
type Result struct {
	Scenario Scenario
	Answer   string
	ToolUses int
	Missing  []string
	Elapsed  time.Duration
	Err      error
}

// Passed reports whether the scenario met all its expectations.
func (r Result) Passed() bool {
	if r.Err != nil || len(r.Missing) > 0 {
		return false
	}
	if r.Scenario.ExpectToolUse && r.ToolUses == 0 {
		return false
	}
	if !r.Scenario.ExpectToolUse && r.ToolUses > 0 {
		return false
	}
	return true
}

// Run replays every scenario through chat, each in a fresh call, and
// scores the answers.
func Run(ctx context.Context, scenarios []Scenario, chat ChatFunc) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Scenario: sc, Err: err})
			continue
		}

		start := time.Now()
		answer, toolCalls, err := chat(ctx, sc.Prompt)
		r := Result{
			Scenario: sc,
			Answer:   answer,
			ToolUses: toolCalls,
			Elapsed:  time.Since(start),
			Err:      err,
		}
		if err == nil {
			r.Missing = missingKeywords(answer, sc.Keywords)
		}
		results = append(results, r)
	}
	return results
}

func missingKeywords(answer string, keywords []string) []string {
	lower := strings.ToLower(answer)
	var missing []string
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	return missing
}

// Summary aggregates a result set.
type Summary struct {
	Total  int
	Passed int
}

// Summarize counts passes across results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		}
	}
	return s
}

// Report writes a human-readable pass/fail listing to w.
func Report(w io.Writer, results []Result) {
	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %-30s  tools=%d  %s\n", status, r.Scenario.Name, r.ToolUses, r.Elapsed.Round(time.Millisecond))
		if r.Err != nil {
			fmt.Fprintf(w, "      error: %v\n", r.Err)
		}
		for _, kw := range r.Missing {
			fmt.Fprintf(w, "      missing keyword: %q\n", kw)
		}
		if r.Scenario.ExpectToolUse && r.ToolUses == 0 && r.Err == nil {
			fmt.Fprintln(w, "      expected tool use, saw none")
		}
		if !r.Scenario.ExpectToolUse && r.ToolUses > 0 {
			fmt.Fprintln(w, "      expected no tool use")
		}
	}

	s := Summarize(results)
	fmt.Fprintf(w, "\n%d/%d scenarios passed\n", s.Passed, s.Total)
}

// DefaultSuite covers the demo fixture data in internal/procs.
func DefaultSuite() []Scenario {
	return []Scenario{
		{
			Name:   "greeting stays toolless",
			Prompt: "Hello!",
		},
		{
			Name:          "profile lookup",
			Prompt:        "Give me a profile summary for customer 1001",
			Keywords:      []string{"Ada"},
			ExpectToolUse: true,
		},
		{
			Name:          "name search",
			Prompt:        "Find customers named Silva",
			Keywords:      []string{"Carmen"},
			ExpectToolUse: true,
		},
		{
			Name:          "payment history",
			Prompt:        "What payments has customer 1001 made?",
			Keywords:      []string{"120"},
			ExpectToolUse: true,
		},
		{
			Name:          "export request",
			Prompt:        "Export all payments to a file I can download",
			Keywords:      []string{"download"},
			ExpectToolUse: true,
		},
	}
}
