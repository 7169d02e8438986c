package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/LedMarketing/OpenManus/models"
)

// MaxContextExchanges is how many prior exchanges reach the model.
const MaxContextExchanges = 5

const chatSystemPrompt = `You are an AI assistant specialised in code generation, web scraping, task automation and API integration.
Give practical answers with working code examples whenever they help.
Put code in markdown code blocks and be clear and didactic.`

const codeSystemPrompt = `You are an expert software developer. Write clean, well-commented, working code in %s.
Include a short explanation of how to use it.
Put the code in markdown code blocks.`

const scraperSystemPrompt = `You are a web scraping expert. Write safe, efficient scraping scripts using Puppeteer, Cheerio or Playwright.
Always include error handling and respect robots.txt.
Return complete JavaScript code.`

const scraperUserPrompt = `Create a script to extract data from the URL: %s
Specific requirements: %s

The script must:
1. Handle errors robustly
2. Respect rate limits
3. Save the extracted data as JSON
4. Log its progress informatively`

func systemPrompt(task Task, language string) string {
	switch task {
	case TaskCode:
		if language == "" {
			language = "javascript"
		}
		return fmt.Sprintf(codeSystemPrompt, language)
	case TaskScraper:
		return scraperSystemPrompt
	default:
		return chatSystemPrompt
	}
}

// ContextMessages expands entries into chat turns and keeps the turns that
// make up the last MaxContextExchanges exchanges. Exchanges become a
// user/assistant pair; role/content entries pass through when the role is
// user or assistant. Empty turns are dropped. The result always starts on a
// user turn.
func ContextMessages(entries []models.ContextEntry) []Message {
	out := make([]Message, 0, len(entries)*2)
	for _, e := range entries {
		if e.IsExchange() {
			if s := strings.TrimSpace(e.UserMessage); s != "" {
				out = append(out, Message{Role: "user", Content: s})
			}
			if s := strings.TrimSpace(e.AssistantResponse); s != "" {
				out = append(out, Message{Role: "assistant", Content: s})
			}
			continue
		}
		role := strings.ToLower(strings.TrimSpace(e.Role))
		content := strings.TrimSpace(e.Content)
		if content == "" || (role != "user" && role != "assistant") {
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return trimTurns(out, MaxContextExchanges)
}

// trimTurns keeps everything from the n-th last user turn onward.
func trimTurns(msgs []Message, n int) []Message {
	start := len(msgs)
	users := 0
	for i := len(msgs) - 1; i >= 0 && users < n; i-- {
		if msgs[i].Role == "user" {
			start = i
			users++
		}
	}
	return msgs[start:]
}

// Chat answers message given prior context.
func (c *Client) Chat(ctx context.Context, message string, history []models.ContextEntry) (string, error) {
	msgs := append(ContextMessages(history), Message{Role: "user", Content: message})
	return c.Complete(ctx, TaskChat, msgs, Options{})
}

// CodePrompt builds the user turn for code generation.
func CodePrompt(prompt, requirements string) string {
	if requirements = strings.TrimSpace(requirements); requirements == "" {
		return prompt
	}
	return prompt + "\n\nAdditional requirements: " + requirements
}

// GenerateCode asks for code in language.
func (c *Client) GenerateCode(ctx context.Context, prompt, language, requirements string) (string, error) {
	return c.Complete(ctx, TaskCode,
		[]Message{{Role: "user", Content: CodePrompt(prompt, requirements)}},
		Options{Language: language},
	)
}

// GenerateScraper asks for a standalone scraper script for target and
// syntax-checks the first JavaScript block of the answer.
func (c *Client) GenerateScraper(ctx context.Context, target, requirements string) (*models.GeneratedScript, error) {
	if strings.TrimSpace(requirements) == "" {
		requirements = models.DefaultRequirements
	}
	script, err := c.Complete(ctx, TaskScraper,
		[]Message{{Role: "user", Content: fmt.Sprintf(scraperUserPrompt, target, requirements)}},
		Options{},
	)
	if err != nil {
		return nil, err
	}
	return &models.GeneratedScript{
		Script:   script,
		Language: "javascript",
		Syntax:   CheckScript(script),
	}, nil
}
