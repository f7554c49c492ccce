package capture

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/renderinc/learnshare/internal/storage"
)

func enhancementPrompt(req ContextRequest) string {
	return fmt.Sprintf(`You're an expert at understanding context and enhancing learning materials.

URL: %s
Selected Text: %s
Page Context: %s
User's Thought: %s

Please analyze this context and provide:
1. Key concepts mentioned
2. Related topics
3. Potential learning paths`, req.SourceURL, req.SelectedText, req.PageContext, req.UserThought)
}

func analysisPrompt(text, source string) string {
	return fmt.Sprintf(`You're an expert at analyzing content and extracting key information.

Analyze this content and provide:
1. Key topics (as tags), each on its own line starting with "- "
2. Brief summary
3. Main concepts
4. Related areas

Content: %s
Source: %s`, text, source)
}

func suggestionPrompt(text, analysis string) string {
	return fmt.Sprintf(`You're an expert at identifying content relationships and learning paths.

Analyze this content and suggest:
1. Related topics it should be connected to
2. What learning path it might belong to
3. Similar content clusters

Content: %s
Analysis: %s`, text, analysis)
}

func socialPrompt(text string, contexts []*storage.ContentContext, req SocialRequest) string {
	custom, _ := json.Marshal(req.Customization)
	return fmt.Sprintf(`You're a social media expert who crafts engaging, platform-optimized content.

Content: %s
Context: %s
Style: %s
Customization: %s

Create engaging social media content that:
1. Captures the key insights
2. Is optimized for each platform
3. Follows the requested style and customization`, text, thoughts(contexts), req.Style, custom)
}

func thoughts(contexts []*storage.ContentContext) string {
	var lines []string
	for _, c := range contexts {
		if c.UserThought != "" {
			lines = append(lines, c.UserThought)
		}
	}
	return strings.Join(lines, "\n")
}
