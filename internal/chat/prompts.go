package chat

import (
	"encoding/json"
	"fmt"

	"github.com/renderinc/learnshare/internal/chatcache"
)

func enhancePrompt(query string) string {
	return fmt.Sprintf(`User's Query: "%s"

Task: Enhance this query to make it more specific, contextual, and suitable for retrieving the most accurate and high-quality search results. Use synonyms, rephrase for clarity, and add any missing context based on common user intent. Reply with the enhanced query only.`, query)
}

func generalPrompt(query string, items []chatcache.Item) string {
	contextPrompt := ""
	if len(items) > 0 {
		contextPrompt = "Relevant Context: " + toJSON(items) + "\n"
	}
	return fmt.Sprintf(`%sUser Query: "%s"

Task: Provide a comprehensive answer that:
1. Acknowledges any relevant context (if provided)
2. Gives a direct answer to the query
3. Explains 3-5 key points
4. Provides real-world examples
5. Suggests next steps or related topics

Formatting Rules:
- Use markdown for readability
- Keep paragraphs under 3 sentences
- End with a natural follow-up question
- Maintain conversational flow

If context exists but isn't relevant:
"While we have information about [context topic], here's what I know about [current query]..."`, contextPrompt, query)
}

func metadataPrompt(item chatcache.Item, newTopic bool) string {
	image := "No image available"
	if item.Image != nil {
		image = *item.Image
	}
	timestamp := "Unknown time"
	if item.Timestamp != nil {
		timestamp = *item.Timestamp
	}
	task := "Provide deeper insights and suggest next exploration steps"
	if newTopic {
		task = "Introduce this topic and ask if the user wants more details"
	}
	return fmt.Sprintf(`Metadata:
Title: "%s"
Description: "%s"
Image: "%s"
Author: "%s"
Timestamp: "%s"
Link: "%s"

Task: %s

Always end with a relevant follow-up question.`,
		item.Title, item.Description, image, item.Author, timestamp, item.Link, task)
}

func contentPrompt(q ContentQuestion) string {
	return fmt.Sprintf(`Full Page Context: "%s"
Source URL: "%s"

Content for analysis: "%s"

User's Question: "%s"

Answer the user's question directly with a detailed explanation. If the question is unclear, politely ask for clarification. If the question is related to the content, explain thoroughly using real-world analogies, practical examples, and references for clarity.

After answering, ask the user:
"Would you like to move to the next topic or deep dive into this topic?"`,
		q.PageContext, q.SourceURL, q.Content, q.Question)
}

func summaryPrompt(content string, discussion json.RawMessage) string {
	if len(discussion) == 0 {
		discussion = json.RawMessage("null")
	}
	return fmt.Sprintf(`Summarize this content and discussion into a clear, engaging format.
Content: %s
Discussion: %s

Requirements:
- Create a concise summary
- Focus on key points
- Use professional tone
- Avoid mentioning user interactions or discussions
- Avoid technical jargon
- Make it readable and shareable
- Focus only on relevant information from the content

Format the response as plain text without any special formatting.`, content, discussion)
}

func explorePrompt(content string) string {
	return fmt.Sprintf(`You are an expert at analyzing content. Analyze this content and provide:
1. A brief summary (2-3 sentences)
2. 3 key insights, each on its own line starting with "- "
3. Suggested tags

Content: %s`, content)
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
