// Package approval implements the optional human-in-the-loop approval layer.
// When a run policy operates in ask mode, gated self-modification tools are
// paused until an explicit approve or reject decision is recorded.
package approval
