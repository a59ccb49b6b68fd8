// Package prompt holds the oracle prompt templates. Keeping them in one
// place makes prompt tuning reviewable without touching pipeline code.
package prompt

import (
	"fmt"
	"strings"
)

const extractionTemplate = `You are a YouTube content analyst. Extract 1-3 specific topics from this video.

Rules:
- Be SPECIFIC, not generic (e.g., "ChatGPT prompt engineering" not "AI")
- Focus on the main actionable topic viewers would search for
- Use lowercase, keep it concise (2-5 words per topic)
- Return ONLY the topics, one per line, nothing else

Example outputs:
chatgpt prompt engineering
midjourney v6 tutorial
how to grow on youtube shorts

Video content:
%s

Topics (1-3 lines):`

// Extraction builds the topic extraction prompt from the assembled video
// content (title plus transcript or description, already capped).
func Extraction(content string) string {
	return fmt.Sprintf(extractionTemplate, content)
}

const clusteringTemplate = `Group these YouTube video topics into clusters. %s

Topics:
%s

Rules:
1. Group similar topics together
2. Cluster name: 2-5 lowercase words
3. BE SPECIFIC - use actual tool names, product names, or specific techniques
4. AVOID generic names like "ai automation", "ai tools", "productivity tips", "tutorials"
5. Include ALL topics (even unique ones as single-item clusters)

Examples of GOOD cluster names:
- "clawdbot setup tutorials"
- "gemini whisk workflows"
- "antigravity agent building"
- "notebooklm features"
- "claude code tips"

Examples of BAD cluster names (TOO GENERIC - never use these):
- "ai automation"
- "ai tools"
- "productivity"
- "tutorials"
- "google updates"

Return ONLY this JSON format, nothing else:
{"clusters":[{"name":"example name","topics":["topic1","topic2"]}]}`

// Clustering builds the clustering prompt. context is free text about where
// the topics came from (usually the bucket name) and may be empty.
func Clustering(topics []string, context string) string {
	var list strings.Builder
	for _, t := range topics {
		list.WriteString("- ")
		list.WriteString(t)
		list.WriteString("\n")
	}

	contextText := ""
	if context != "" {
		contextText = fmt.Sprintf("Context: %s\n", context)
	}

	return fmt.Sprintf(clusteringTemplate, contextText, strings.TrimSuffix(list.String(), "\n"))
}
