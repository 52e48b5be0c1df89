package agent

import (
	"encoding/json"
	"fmt"

	"github.com/scratchpad-ai/agent-server/internal/llm"
)

const (
	// truncationThreshold is the serialized length above which an old tool
	// return gets rewritten.
	truncationThreshold = 1000
	// dataPrunedNotice replaces the data payload of old data-fetch returns.
	dataPrunedNotice = "[Actual records deleted to reduce context size]"
)

// dataFetchTools is the fixed set of tools whose returns carry a prunable
// "data" key. Future fetch tools must set metadata is_data_fetch instead.
var dataFetchTools = map[string]bool{
	"fetch_additional_records": true,
	"fetch_records_by_ids":     true,
}

// ProcessHistory rewrites the message history before a model call so context
// growth stays bounded. The most recent request is preserved byte-for-byte:
// current-turn tool results must survive verbatim or the model cannot reason
// about what just happened. Older tool returns above the threshold are pruned
// while keeping provenance (tool name, original length) intact.
func ProcessHistory(messages []llm.Message) []llm.Message {
	lastRequest := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind == llm.KindRequest {
			lastRequest = i
			break
		}
	}

	out := make([]llm.Message, len(messages))
	copy(out, messages)
	for i := range out {
		if i == lastRequest || out[i].Kind != llm.KindRequest {
			continue
		}
		out[i] = truncateRequest(out[i])
	}
	return out
}

func truncateRequest(msg llm.Message) llm.Message {
	changed := false
	parts := make([]llm.Part, len(msg.Parts))
	copy(parts, msg.Parts)

	for i, part := range parts {
		if part.Kind != llm.PartToolReturn || len(part.Content) <= truncationThreshold {
			continue
		}
		if isDataFetch(part) {
			parts[i].Content = pruneDataKey(part)
		} else {
			parts[i].Content = genericNotice(part)
		}
		changed = true
	}

	if !changed {
		return msg
	}
	msg.Parts = parts
	return msg
}

func isDataFetch(part llm.Part) bool {
	if dataFetchTools[part.ToolName] {
		return true
	}
	flagged, _ := part.Metadata["is_data_fetch"].(bool)
	return flagged
}

// pruneDataKey replaces only the "data" value of a JSON object payload,
// preserving sibling keys (summary, cursors, counts). Anything unparseable
// falls back to the generic notice; no failure escapes.
func pruneDataKey(part llm.Part) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(part.Content), &payload); err != nil {
		return genericNotice(part)
	}
	if _, ok := payload["data"]; !ok {
		return genericNotice(part)
	}

	pruned, err := json.Marshal(dataPrunedNotice)
	if err != nil {
		return genericNotice(part)
	}
	payload["data"] = pruned

	bs, err := json.Marshal(payload)
	if err != nil {
		return genericNotice(part)
	}
	return string(bs)
}

func genericNotice(part llm.Part) string {
	return fmt.Sprintf("[Content from tool '%s' was pruned for brevity. Original length: %d chars]",
		part.ToolName, len(part.Content))
}
