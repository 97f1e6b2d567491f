package insights

import (
	goopenai "github.com/sashabaranov/go-openai"
)

type Capabilities struct {
	Vision   bool `json:"vision"`
	Tools    bool `json:"tools"`
	JSONMode bool `json:"json_mode"`
}

var capabilityTable = map[string]Capabilities{
	goopenai.GPT4o:             {Vision: true, Tools: true, JSONMode: true},
	goopenai.GPT4oMini:         {Vision: true, Tools: true, JSONMode: true},
	goopenai.GPT4Turbo:         {Vision: true, Tools: true, JSONMode: true},
	goopenai.GPT4VisionPreview: {Vision: true},
	goopenai.GPT4:              {Tools: true},
	goopenai.GPT3Dot5Turbo:     {Tools: true, JSONMode: true},
	"o1-preview":               {},
	"o1-mini":                  {},
	"chatgpt-4o-latest":        {Vision: true, JSONMode: true},
}

// ModelCapabilities infers capability flags from a resolved model name.
func ModelCapabilities(model string) Capabilities {
	key, ok := longestPrefix(model, keys(capabilityTable))
	if !ok {
		return Capabilities{}
	}
	return capabilityTable[key]
}

func IsVisionModel(model string) bool {
	return ModelCapabilities(model).Vision
}
