package extract

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON 从可能夹杂解释文字或 markdown 代码块的模型回复中取出 JSON。
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// 尝试从 markdown 代码块提取
	if strings.Contains(response, "```") {
		matches := fenceRe.FindStringSubmatch(response)
		if len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}

	// 尝试找到 JSON 对象边界
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}

	// 尝试找到 JSON 数组边界
	start = strings.Index(response, "[")
	end = strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		return response[start : end+1]
	}

	return response
}

// buildSystemPrompt 构造约束模型只输出 JSON 的 system 消息。
func buildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant that extracts structured JSON data from web pages.\n\n")
	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. You MUST respond with valid JSON that conforms to the schema in the request.\n")
	sb.WriteString("2. Do NOT include any text before or after the JSON.\n")
	sb.WriteString("3. Do NOT wrap the JSON in markdown code blocks.\n")
	sb.WriteString("4. Omit optional fields you cannot find rather than inventing values.\n\n")
	sb.WriteString("Respond with ONLY the JSON object.")
	return sb.String()
}
