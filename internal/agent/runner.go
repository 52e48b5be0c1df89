package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/scratchpad-ai/agent-server/internal/llm"
)

// maxSteps bounds the model loop for a single turn. A model that never emits
// a final output is treated as an internal failure rather than looping.
const maxSteps = 50

// ProgressFunc receives step-by-step progress events during a run.
type ProgressFunc func(stage string, data map[string]interface{})

// RunResult is the outcome of one turn. Usage is best-effort and populated
// even when Run returns an error.
type RunResult struct {
	Output *llm.FinalOutput
	Usage  llm.Usage
	Model  string
	Steps  int
}

// SnapshotFormatter renders the workbook context block appended to the user
// prompt for tabular scopes.
type SnapshotFormatter func(rc *RunContext) string

// Runner drives one user turn: prompt assembly, the model loop, tool
// dispatch, and cooperative cancellation. A Runner is built per turn.
type Runner struct {
	log      *logrus.Entry
	model    llm.Model
	system   string
	tools    []ToolDescriptor
	snapshot SnapshotFormatter
}

// NewRunner binds a model, a system prompt, and a tool set for one turn.
func NewRunner(model llm.Model, systemPrompt string, tools []ToolDescriptor, snapshot SnapshotFormatter) *Runner {
	return &Runner{
		log:      logrus.WithField("component", "agent-runner"),
		model:    model,
		system:   systemPrompt,
		tools:    tools,
		snapshot: snapshot,
	}
}

// Run executes the turn. The session's agent history is extended in place
// with the user message and every model exchange; callers persist it after
// the turn. The returned error is one of *TokenLimitError, *RunStoppedError,
// *llm.ProviderError, or *InternalError.
func (r *Runner) Run(ctx context.Context, rc *RunContext, userMessage string, onProgress ProgressFunc) (*RunResult, error) {
	if onProgress == nil {
		onProgress = func(string, map[string]interface{}) {}
	}
	log := r.log.WithFields(logrus.Fields{
		"session_id": rc.Session.ID,
		"run_id":     rc.RunID,
		"model":      r.model.Name(),
	})

	rc.Runs.StartRun(rc.Session.ID, rc.RunID)
	result := &RunResult{Model: r.model.Name()}

	prompt := r.userPrompt(rc, userMessage)
	rc.Session.AgentHistory = append(rc.Session.AgentHistory, llm.UserMessage(r.system, prompt))

	schemas := make([]llm.ToolSchema, 0, len(r.tools))
	for _, d := range r.tools {
		schemas = append(schemas, llm.ToolSchema{Name: d.Name, Description: d.Description, Parameters: d.Schema})
	}

	for result.Steps < maxSteps {
		if rc.Runs.IsCancelled(rc.RunID) {
			log.Info("run cancelled before model call")
			return result, &RunStoppedError{RunID: rc.RunID, When: StopBeforeModel}
		}

		history := ProcessHistory(rc.Session.AgentHistory)
		if err := PrecheckPrompt(EstimateTokens(r.system, history), r.model.ContextLength()); err != nil {
			return result, err
		}

		onProgress("model_call", map[string]interface{}{"step": result.Steps + 1})
		resp, err := r.model.Step(ctx, llm.StepRequest{
			Instructions: r.system,
			Messages:     history,
			Tools:        schemas,
		})
		if err != nil {
			return result, r.classify(err)
		}
		result.Steps++
		result.Usage.Add(resp.Usage)
		if err := PostcheckUsage(result.Usage, r.model.ContextLength()); err != nil {
			return result, err
		}

		if resp.Output != nil {
			rc.Session.AgentHistory = append(rc.Session.AgentHistory, llm.Message{
				Kind:  llm.KindResponse,
				Parts: []llm.Part{{Kind: llm.PartText, Content: resp.Output.ResponseMessage}},
			})
			rc.Runs.CompleteRun(rc.RunID)
			result.Output = resp.Output
			log.WithFields(logrus.Fields{
				"steps":  result.Steps,
				"tokens": result.Usage.TotalTokens,
			}).Info("run completed")
			return result, nil
		}
		if len(resp.ToolCalls) == 0 {
			return result, &InternalError{
				Cause: fmt.Errorf("model step %d returned neither output nor tool calls", result.Steps),
			}
		}

		stopped, err := r.executeToolCalls(ctx, rc, resp.ToolCalls, onProgress)
		if err != nil {
			return result, err
		}
		if stopped {
			log.Info("run cancelled between tool calls")
			return result, &RunStoppedError{RunID: rc.RunID, When: StopBetweenTools}
		}
	}

	return result, &InternalError{Cause: fmt.Errorf("run exceeded %d model steps without a final output", maxSteps)}
}

// executeToolCalls runs each requested tool in order, recording the call and
// return messages in the agent history. Cancellation is observed between
// tools, never mid-call; partial returns are recorded before stopping.
func (r *Runner) executeToolCalls(ctx context.Context, rc *RunContext, calls []llm.ToolCall, onProgress ProgressFunc) (stopped bool, err error) {
	callParts := make([]llm.Part, 0, len(calls))
	for _, call := range calls {
		callParts = append(callParts, llm.Part{
			Kind:       llm.PartToolCall,
			ToolName:   call.Name,
			ToolCallID: call.ID,
			Args:       call.Args,
		})
	}
	rc.Session.AgentHistory = append(rc.Session.AgentHistory, llm.Message{Kind: llm.KindResponse, Parts: callParts})

	returnParts := make([]llm.Part, 0, len(calls))
	defer func() {
		if len(returnParts) > 0 {
			rc.Session.AgentHistory = append(rc.Session.AgentHistory, llm.Message{Kind: llm.KindRequest, Parts: returnParts})
		}
	}()

	for i, call := range calls {
		if i > 0 && rc.Runs.IsCancelled(rc.RunID) {
			return true, nil
		}
		onProgress("tool_call", map[string]interface{}{"tool": call.Name})

		ret := r.invokeTool(ctx, rc, call)
		meta := ret.Metadata
		if ret.IsDataFetch {
			// The history processor prunes data-fetch returns by metadata flag.
			if meta == nil {
				meta = map[string]interface{}{}
			}
			meta["is_data_fetch"] = true
		}
		returnParts = append(returnParts, llm.Part{
			Kind:       llm.PartToolReturn,
			Content:    ret.HistoryContent(),
			ToolName:   call.Name,
			ToolCallID: call.ID,
			Metadata:   meta,
		})
		onProgress("tool_result", map[string]interface{}{"tool": call.Name})
	}

	return rc.Runs.IsCancelled(rc.RunID), nil
}

// invokeTool dispatches one call. Unknown tools and invoker panics become
// error strings visible to the model, never turn failures.
func (r *Runner) invokeTool(ctx context.Context, rc *RunContext, call llm.ToolCall) (ret ToolReturn) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{
				"tool":   call.Name,
				"run_id": rc.RunID,
			}).Errorf("tool invoker panicked: %v", p)
			ret = ToolReturn{Value: fmt.Sprintf("Error: tool '%s' failed unexpectedly.", call.Name)}
		}
	}()

	for _, d := range r.tools {
		if d.Name == call.Name {
			return d.Invoke(ctx, rc, call.Args)
		}
	}
	return ToolReturn{Value: fmt.Sprintf("Error: unknown tool '%s'.", call.Name)}
}

// userPrompt appends the current snapshot block to the raw user message for
// tabular scopes.
func (r *Runner) userPrompt(rc *RunContext, message string) string {
	if rc.Scope == ScopeFile || r.snapshot == nil {
		return message
	}
	block := r.snapshot(rc)
	if block == "" {
		return message
	}
	return message + "\n\n" + block
}

func (r *Runner) classify(err error) error {
	if pe, ok := err.(*llm.ProviderError); ok {
		return pe
	}
	return &InternalError{Cause: err}
}
