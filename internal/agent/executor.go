package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const defaultMaxIterations = 6

// Hooks receives tool and LLM lifecycle events during a run. Any hook may be
// nil. OnToolStart returns an execution id that is handed back on end/error
// so callers can correlate the two events.
type Hooks struct {
	OnToolStart func(toolName, input string) (string, error)
	OnToolEnd   func(executionID, output string)
	OnToolError func(executionID, errorMessage string)
	OnLLMEnd    func(usage Usage)
}

// RunResult is the agent's final text plus accumulated token usage.
type RunResult struct {
	Output       string
	InputTokens  int
	OutputTokens int
	ToolsCalled  []string
}

// Executor runs one research query to completion.
type Executor interface {
	Run(ctx context.Context, query string, hooks Hooks) (RunResult, error)
}

// LoopExecutor drives an LLM through a bounded tool-use loop: each turn the
// model either requests a tool or emits the final structured result.
type LoopExecutor struct {
	llm           *LLMClient
	cfg           ChatConfig
	tools         map[string]Tool
	toolOrder     []string
	maxIterations int
}

func NewLoopExecutor(llm *LLMClient, cfg ChatConfig, tools []Tool, maxIterations int) *LoopExecutor {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	byName := make(map[string]Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
		order = append(order, tool.Name())
	}
	return &LoopExecutor{
		llm:           llm,
		cfg:           cfg,
		tools:         byName,
		toolOrder:     order,
		maxIterations: maxIterations,
	}
}

type turnDecision struct {
	Action *struct {
		Tool  string `json:"tool"`
		Input string `json:"input"`
	} `json:"action"`
	Final json.RawMessage `json:"final"`
}

func (e *LoopExecutor) Run(ctx context.Context, query string, hooks Hooks) (RunResult, error) {
	messages := []ChatMessage{
		{Role: "system", Content: e.systemPrompt()},
		{Role: "user", Content: strings.TrimSpace(query)},
	}

	var result RunResult
	for i := 0; i < e.maxIterations; i++ {
		content, usage, err := e.llm.Complete(ctx, e.cfg, messages)
		if err != nil {
			return RunResult{}, err
		}
		result.InputTokens += usage.PromptTokens
		result.OutputTokens += usage.CompletionTokens
		if hooks.OnLLMEnd != nil {
			hooks.OnLLMEnd(usage)
		}

		decision, err := parseTurnDecision(content)
		if err != nil {
			// A non-JSON turn is treated as the final answer; the output
			// parser downstream decides whether it is usable.
			result.Output = content
			return result, nil
		}

		if decision.Action == nil {
			result.Output = string(decision.Final)
			if result.Output == "" {
				result.Output = content
			}
			return result, nil
		}

		observation, err := e.runTool(ctx, decision.Action.Tool, decision.Action.Input, hooks, &result)
		if err != nil {
			return RunResult{}, err
		}
		messages = append(messages,
			ChatMessage{Role: "assistant", Content: content},
			ChatMessage{Role: "user", Content: "Observation: " + observation},
		)
	}

	return RunResult{}, errors.New("agent exceeded max iterations without a final answer")
}

// runTool executes one tool request and returns the observation text for the
// next turn. A failing tool is an observation; a failing OnToolStart hook is a
// persistence error and aborts the run.
func (e *LoopExecutor) runTool(ctx context.Context, name, input string, hooks Hooks, result *RunResult) (string, error) {
	executionID := ""
	if hooks.OnToolStart != nil {
		id, err := hooks.OnToolStart(name, input)
		if err != nil {
			return "", fmt.Errorf("record tool start failed: %w", err)
		}
		executionID = id
	}

	tool, ok := e.tools[name]
	if !ok {
		msg := fmt.Sprintf("unknown tool %q", name)
		if hooks.OnToolError != nil {
			hooks.OnToolError(executionID, msg)
		}
		return msg, nil
	}

	result.ToolsCalled = append(result.ToolsCalled, name)
	output, err := tool.Run(ctx, input)
	if err != nil {
		if hooks.OnToolError != nil {
			hooks.OnToolError(executionID, err.Error())
		}
		return "tool error: " + err.Error(), nil
	}
	if hooks.OnToolEnd != nil {
		hooks.OnToolEnd(executionID, output)
	}
	return output, nil
}

func (e *LoopExecutor) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a research assistant. You may use these tools:\n")
	for _, name := range e.toolOrder {
		tool := e.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}
	b.WriteString(`
Respond with exactly one JSON object per turn, nothing else.
To use a tool: {"action": {"tool": "<name>", "input": "<input>"}}
When you have enough information, answer with:
{"final": {"topic": "...", "summary": "...", "sources": ["..."], "tools_used": ["..."]}}
`)
	return b.String()
}

func parseTurnDecision(content string) (turnDecision, error) {
	raw := extractJSONObject(content)
	if raw == "" {
		return turnDecision{}, errors.New("no json object in turn")
	}
	var decision turnDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return turnDecision{}, err
	}
	if decision.Action == nil && decision.Final == nil {
		return turnDecision{}, errors.New("turn has neither action nor final")
	}
	return decision, nil
}
