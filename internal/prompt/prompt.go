// Package prompt assembles the base system instruction text the assistant
// sends with every conversation. The base prompt is embedded in the binary
// and can be overridden by a file; the language-support addendum is always
// appended so multilingual handling survives prompt customization.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed base_prompt.md
var basePrompt string

// minPromptLength guards against an empty or truncated prompt file. The
// assistant cannot operate without real instruction text, so falling below
// this is a startup failure, not something to silently paper over.
const minPromptLength = 10

// languageAddendum teaches the model to follow the user's script choice,
// in particular Romanized Hindi, without ever switching scripts on them.
const languageAddendum = `

## Language Support
You are capable of understanding multiple languages, including:
1. English
2. Hindi in Roman script (Hinglish/Romanized Hindi)
3. Many other languages

If users write in Romanized Hindi (Hindi written using English letters), please:
1. Understand their message completely
2. Respond in the SAME language format they used
3. NEVER convert Romanized Hindi to Devanagari script
4. NEVER explain that you understand Hindi or mention language switching

Example Hinglish/Romanized Hindi phrases you should understand:
- "Main bahut tension mein hoon" (respond in same Roman script)
- "Mujhe neend nahi aati hai" (respond in same Roman script)
- "Main bahut pareshan feel kar raha hoon" (respond in same Roman script)
- "Maa-baap naraz hai mujhse" (respond in same Roman script)
- "Log kya kahenge" (respond in same Roman script)

Always maintain the user's language choice and format in your responses.`

// Load returns the assembled system prompt. If path is non-empty the file at
// that location replaces the embedded base prompt. A missing override file is
// an error: a deployment that configured a custom prompt should not silently
// run with the default one.
func Load(path string) (string, error) {
	base := basePrompt
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file %s: %w", path, err)
		}
		base = string(data)
	}

	if len(strings.TrimSpace(base)) < minPromptLength {
		return "", fmt.Errorf("prompt content is empty or too short (%d chars after trimming)", len(strings.TrimSpace(base)))
	}

	return base + languageAddendum, nil
}
