// Package errmodel defines the compact categorized error used across the
// agent core. Every recoverable failure inside a session (provider calls,
// reflection parsing, tool execution, memory access) is classified here so
// the loop can decide whether to absorb it or terminate.
package errmodel

import (
	"encoding/json"
	"errors"
	"strings"
)

// Category values for compact errors.
const (
	// CategoryProvider marks completion-provider failures (call failed or
	// timed out). Retried with backoff before counting as a loop error.
	CategoryProvider = "provider"
	// CategoryParse marks malformed structured reflection output.
	CategoryParse = "parse"
	// CategoryTool marks tool execution failures. Never terminates a session.
	CategoryTool = "tool"
	// CategoryMemory marks index/persistence failures. Search degrades to
	// "no matches" instead of failing the session.
	CategoryMemory = "memory"
	// CategoryValidation marks schema or argument validation failures.
	CategoryValidation = "validation"
	// CategorySystem is the fallback for unclassified errors.
	CategorySystem = "system"
)

// Error is the compact error payload used internally and in the audit log.
// It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// New constructs a new compact error.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, 512)}
	if len(ctx) > 0 {
		ce.Context = truncateContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From converts any error into a compact Error. If err is already *Error, it's returned as-is.
func From(err error) *Error {
	var ce *Error
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) {
		return ce
	}
	// Default to system/internal for unknown error types.
	return &Error{Category: CategorySystem, Code: "internal", Message: truncate(err.Error(), 512)}
}

// Convenience constructors.

func Provider(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryProvider, code, message, ctx, cause)
	}
	return New(CategoryProvider, code, message, ctx)
}

func Parse(code, message string, ctx map[string]any) *Error {
	return New(CategoryParse, code, message, ctx)
}

func Tool(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryTool, code, message, ctx, cause)
	}
	return New(CategoryTool, code, message, ctx)
}

func Memory(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryMemory, code, message, ctx, cause)
	}
	return New(CategoryMemory, code, message, ctx)
}

func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategorySystem, code, message, ctx, cause)
	}
	return New(CategorySystem, code, message, ctx)
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

// truncate trims a string to max characters.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateContext trims long string values in the context map.
func truncateContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, 256)
		default:
			// Try to stringify primitive slices to keep payload compact.
			b, err := json.Marshal(t)
			if err == nil && len(b) > 0 {
				s := string(b)
				if len(s) > 256 {
					s = truncate(s, 256)
				}
				out[k] = s
			} else {
				out[k] = t
			}
		}
	}
	return out
}
