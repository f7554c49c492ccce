package crafting

import (
	"fmt"
	"strings"
)

func summaryTwitterPrompt(summary string) string {
	return fmt.Sprintf(`Create a concise Twitter post based on this summary:
"%s"

Requirements:
- Keep under 280 characters
- Focus on the educational aspect
- Include 2-3 relevant hashtags
- Maintain professional tone
- Avoid excessive emojis`, summary)
}

func summaryLinkedInPrompt(summary string) string {
	return fmt.Sprintf(`Create a professional LinkedIn post based on this content:
"%s"

Post Structure:
1. Start with a brief, engaging title
2. Explain the topic's importance
3. Share key insights from the summary
4. Add value by providing additional context
5. End with an engaging question
6. Include 3-4 relevant hashtags

Keep the tone professional and educational.`, summary)
}

func thoughtTwitterPrompt(thought string) string {
	return fmt.Sprintf(`Transform this thought into an engaging Twitter post:
"%s"

Requirements:
- Keep under 280 characters
- Make it conversational and authentic
- Add 2-3 relevant hashtags
- Include appropriate emojis
- Maintain personal voice`, thought)
}

func thoughtLinkedInPrompt(thought string) string {
	return fmt.Sprintf(`Transform this thought into a professional LinkedIn post:
"%s"

Requirements:
1. Start with a personal reflection
2. Share the main insight
3. Connect it to professional growth
4. Add a call to action or question
5. Include 2-3 relevant hashtags

Keep it authentic and professional.`, thought)
}

func platformPrompt(c Content, platform Platform, cfg PlatformConfig, style Style) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert social media content creator for %s. Create engaging, platform-optimized content.\n\n", platform)
	fmt.Fprintf(&sb, "Craft a %s post about this learning/content.\n", platform)
	fmt.Fprintf(&sb, "Style: %s\n", style)
	fmt.Fprintf(&sb, "Max Length: %d characters\n", cfg.MaxLength)
	fmt.Fprintf(&sb, "Hashtag Limit: %d\n", cfg.HashtagLimit)
	fmt.Fprintf(&sb, "Platform Style: %s\n\n", cfg.Style)
	fmt.Fprintf(&sb, "Content Summary: %s\n", c.Summary)
	fmt.Fprintf(&sb, "Key Points: %s\n", strings.Join(c.KeyPoints, ", "))
	fmt.Fprintf(&sb, "Personal Learning: %s\n\n", c.Learnings)
	sb.WriteString("Requirements:\n")
	sb.WriteString("1. Must fit platform's character limit\n")
	sb.WriteString("2. Include appropriate hashtags\n")
	sb.WriteString("3. Use platform-specific formatting\n")
	sb.WriteString("4. Make it engaging and shareable\n")
	sb.WriteString("5. Include a call to action\n")
	if platform == Twitter && style == StyleThread {
		sb.WriteString("6. Format as a thread with 🧵\n")
	}
	return sb.String()
}
