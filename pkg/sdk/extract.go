package sdk

import "encoding/json"

// extraction is the interaction pulled out of a wrapped call's result.
type extraction struct {
	Output       string
	Model        string
	Framework    string
	TokensInput  *int
	TokensOutput *int
}

// extract sniffs the shape of a wrapped call's result. It recognizes
// chat-completion responses (OpenAI-style), content-block responses
// (Anthropic-style), and plain strings. Structs are inspected through a
// JSON round-trip so typed client responses work without reflection on
// field names.
func extract(result any) (*extraction, bool) {
	switch v := result.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		return &extraction{Output: v}, true
	}

	m, ok := toMap(result)
	if !ok {
		return nil, false
	}

	if obj, _ := m["object"].(string); obj == "chat.completion" {
		return extractChatCompletion(m)
	}
	if blocks, ok := m["content"].([]any); ok {
		return extractContentBlocks(m, blocks)
	}

	return nil, false
}

// toMap converts the result to a generic map, via JSON for typed values.
func toMap(result any) (map[string]any, bool) {
	if m, ok := result.(map[string]any); ok {
		return m, true
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// extractChatCompletion handles OpenAI-style responses:
// choices[0].message.content, model, usage.prompt_tokens/completion_tokens.
func extractChatCompletion(m map[string]any) (*extraction, bool) {
	choices, _ := m["choices"].([]any)
	if len(choices) == 0 {
		return nil, false
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	content, _ := message["content"].(string)
	if content == "" {
		return nil, false
	}

	ext := &extraction{
		Output:    content,
		Framework: "openai",
	}
	ext.Model, _ = m["model"].(string)

	if usage, ok := m["usage"].(map[string]any); ok {
		ext.TokensInput = intField(usage, "prompt_tokens")
		ext.TokensOutput = intField(usage, "completion_tokens")
	}

	return ext, true
}

// extractContentBlocks handles Anthropic-style responses: content is a list
// of typed blocks whose text segments are concatenated.
func extractContentBlocks(m map[string]any, blocks []any) (*extraction, bool) {
	var output string
	for _, b := range blocks {
		block, _ := b.(map[string]any)
		if t, _ := block["type"].(string); t == "text" {
			text, _ := block["text"].(string)
			output += text
		}
	}
	if output == "" {
		return nil, false
	}

	ext := &extraction{
		Output:    output,
		Framework: "anthropic",
	}
	ext.Model, _ = m["model"].(string)

	if usage, ok := m["usage"].(map[string]any); ok {
		ext.TokensInput = intField(usage, "input_tokens")
		ext.TokensOutput = intField(usage, "output_tokens")
	}

	return ext, true
}

// intField reads a numeric JSON field as *int.
func intField(m map[string]any, key string) *int {
	if f, ok := m[key].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}
