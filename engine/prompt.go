package engine

import (
	"fmt"
	"strings"

	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/decider"
)

const maxPromptSteps = 10

// buildRequest assembles the decision request: a system prompt describing the
// run position and a context payload with the expanded view of the current
// node, recent history and run errors.
func (e *Engine) buildRequest(run *execution.Run, toolSet *ToolSet) *decider.Request {
	machine := run.Machine
	node := machine.Node(toolSet.Node)

	var prompt strings.Builder
	title := run.MachineTitle
	if title == "" {
		title = "an untitled machine"
	}
	fmt.Fprintf(&prompt, "You are executing %s. The run is at node %q", title, toolSet.Path)
	if node != nil && node.Title != "" {
		fmt.Fprintf(&prompt, " (%s)", node.Title)
	}
	prompt.WriteString(".\n")
	prompt.WriteString("Pick exactly one of the offered tools to continue, or end the turn when the work at this node is done.\n")
	for _, note := range machine.Notes {
		if note.Target == toolSet.Node {
			prompt.WriteString("\nNote: " + note.Content + "\n")
		}
	}

	variables := e.runVariables(run)
	context := map[string]interface{}{
		"run":        run.ID,
		"node":       toolSet.Path,
		"variables":  variables,
		"errorCount": run.ErrorCount(),
	}
	if node != nil && len(node.Attributes) > 0 {
		attributes := map[string]interface{}{}
		for _, attr := range node.Attributes {
			expanded, err := run.Session.Expand(attr.Value)
			if err != nil {
				expanded = attr.Value
			}
			attributes[attr.Name] = expanded
		}
		context["attributes"] = attributes
	}
	if steps := recentSteps(run); len(steps) > 0 {
		context["history"] = steps
	}
	if len(run.Errors) > 0 {
		context["errors"] = append([]string(nil), run.Errors...)
	}

	return &decider.Request{
		SystemPrompt: prompt.String(),
		Tools:        toolSet.Tools,
		Context:      context,
	}
}

func recentSteps(run *execution.Run) []string {
	steps := run.Steps
	if len(steps) > maxPromptSteps {
		steps = steps[len(steps)-maxPromptSteps:]
	}
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		if step.To != "" {
			out = append(out, fmt.Sprintf("%s: %s -> %s", step.Tool, step.From, step.To))
			continue
		}
		out = append(out, fmt.Sprintf("%s at %s", step.Tool, step.From))
	}
	return out
}
