// Package calendar_tools exposes calendar actions as discrete tool
// operations for an LLM-driven agent. Every operation resolves the
// invoking user's stored credential first and renders its outcome as
// text, so a failed calendar call never aborts the surrounding
// conversation turn.
package calendar_tools
