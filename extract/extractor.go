// Package extract turns conversation transcripts and project files into
// typed memory facts by calling the extraction LLM, and hosts the
// contradiction classifier used by relational versioning.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nevindra/engram"
)

// Input caps on text passed to the LLM.
const (
	maxContentChars = 8000
	maxSummaryChars = 4000
)

const maxResponseTokens = 2000

// Mode selects the prompt template for an extraction call.
type Mode int

const (
	// ModeConversation extracts atomic typed facts from a transcript.
	ModeConversation Mode = iota
	// ModeSummary produces exactly one session-summary fact.
	ModeSummary
	// ModeInit extracts structural project facts from raw file content.
	ModeInit
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a structured logger. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Extractor drives all LLM calls of the memory pipeline. It tolerates
// unparseable responses by returning empty results: a flaky model never
// prevents the rest of a batch from being stored.
type Extractor struct {
	llm    engram.Provider
	logger *slog.Logger
}

// New creates an Extractor on top of a chat provider.
func New(llm engram.Provider, opts ...Option) *Extractor {
	e := &Extractor{llm: llm, logger: nopLogger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract flattens messages, truncates to the content cap, and calls the
// prompt for the given mode. Every returned fact carries the truncated
// source text as its chunk. An unparseable response yields an empty slice;
// provider errors are returned as-is.
func (e *Extractor) Extract(ctx context.Context, messages []engram.Message, mode Mode) ([]engram.Fact, error) {
	conversation := FlattenMessages(messages)
	if strings.TrimSpace(conversation) == "" {
		return nil, nil
	}
	truncated := truncate(conversation, maxContentChars)

	var system, user string
	switch mode {
	case ModeInit:
		system, user = initExtractionSystem, fmt.Sprintf(initExtractionUser, truncated)
	case ModeSummary:
		system, user = summarySystem, fmt.Sprintf(summaryUser, truncated)
	default:
		system, user = extractionSystem, fmt.Sprintf(extractionUser, truncated)
	}

	resp, err := e.llm.Chat(ctx, engram.ChatRequest{System: system, User: user, MaxTokens: maxResponseTokens})
	if err != nil {
		return nil, err
	}

	facts := ParseFactArray(resp.Text)
	if facts == nil && strings.TrimSpace(resp.Text) != "" && stripFences(resp.Text) != "[]" {
		e.logger.Warn("extract: unparseable response", "mode", int(mode), "head", head(resp.Text, 200))
	}
	for i := range facts {
		facts[i].Chunk = truncated
	}
	return facts, nil
}

// Candidate is one existing memory offered to the contradiction classifier.
type Candidate struct {
	ID     string
	Memory string
}

// ClassifySuperseded asks the LLM which candidate ids are superseded by
// newMemory. Failures of any kind (transport, parse) yield an empty slice:
// versioning is best-effort and must not block ingestion.
func (e *Extractor) ClassifySuperseded(ctx context.Context, newMemory string, candidates []Candidate) []string {
	if len(candidates) == 0 {
		return nil
	}

	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- ID: %s | %s\n", c.ID, c.Memory)
	}
	user := fmt.Sprintf(contradictionUser, newMemory, strings.TrimRight(b.String(), "\n"))

	resp, err := e.llm.Chat(ctx, engram.ChatRequest{System: contradictionSystem, User: user, MaxTokens: maxResponseTokens})
	if err != nil {
		e.logger.Warn("classify superseded: llm call failed", "error", err)
		return nil
	}
	ids := parseIDArray(resp.Text)
	if ids == nil && stripFences(resp.Text) != "[]" {
		e.logger.Warn("classify superseded: unparseable response", "head", head(resp.Text, 200))
	}
	return ids
}

// Condense compresses an aging-out session summary into one learned-pattern
// fact. Returns nil when the model produced nothing usable.
func (e *Extractor) Condense(ctx context.Context, summaryText string) *engram.Fact {
	user := fmt.Sprintf(condenseUser, truncate(summaryText, maxSummaryChars))
	resp, err := e.llm.Chat(ctx, engram.ChatRequest{System: condenseSystem, User: user, MaxTokens: maxResponseTokens})
	if err != nil {
		e.logger.Warn("condense: llm call failed", "error", err)
		return nil
	}
	facts := ParseFactArray(resp.Text)
	if len(facts) == 0 {
		e.logger.Warn("condense: no fact in response", "head", head(resp.Text, 200))
		return nil
	}
	return &facts[0]
}

// FlattenMessages renders a transcript as "[role] text" lines. Content is
// accepted either as a JSON string or as an array of text parts; non-text
// parts are skipped.
func FlattenMessages(messages []engram.Message) string {
	var lines []string
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}

		var text string
		if err := json.Unmarshal(m.Content, &text); err == nil {
			lines = append(lines, fmt.Sprintf("[%s] %s", role, text))
			continue
		}

		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(m.Content, &parts); err == nil {
			for _, p := range parts {
				if p.Type == "text" {
					lines = append(lines, fmt.Sprintf("[%s] %s", role, p.Text))
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
