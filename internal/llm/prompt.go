package llm

import "strings"

// JSONInstruction is appended to system prompts of JSON requests for
// providers without a native JSON mode
const JSONInstruction = "Respond with a single JSON object and nothing else."

// SystemPrompt returns the system prompt of req, with the JSON instruction
// appended when req.JSON is set
func SystemPrompt(req Request) string {
	if !req.JSON {
		return req.System
	}
	if req.System == "" {
		return JSONInstruction
	}
	return req.System + "\n\n" + JSONInstruction
}

// ExtractJSON extracts the outermost JSON object from an LLM answer,
// tolerating markdown code fences and surrounding prose
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if body, ok := extractFromCodeBlock(content, "```json"); ok {
		content = body
	} else if body, ok := extractFromCodeBlock(content, "```"); ok {
		content = body
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return content
	}
	return content[start : end+1]
}

func extractFromCodeBlock(content, startMarker string) (string, bool) {
	startIdx := strings.Index(content, startMarker)
	if startIdx == -1 {
		return "", false
	}

	rest := strings.TrimPrefix(content[startIdx+len(startMarker):], "\n")
	endIdx := strings.Index(rest, "```")
	if endIdx == -1 {
		return "", false
	}

	return strings.TrimSpace(rest[:endIdx]), true
}
