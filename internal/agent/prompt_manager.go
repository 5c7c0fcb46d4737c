package agent

import (
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/*.md
var defaultPrompts embed.FS

const (
	PromptBreakdown = "breakdown.md"
	PromptSplit     = "split.md"
	PromptCompanion = "companion.md"
)

// PromptManager loads system prompts. Files in Directory override the
// built-in defaults of the same name; an empty Directory uses defaults only.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Get returns the prompt stored under name.
func (pm *PromptManager) Get(name string) (string, error) {
	if pm != nil && pm.Directory != "" {
		path := filepath.Join(pm.Directory, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
	}

	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("unknown prompt %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (pm *PromptManager) GetBreakdownPrompt() (string, error) {
	return pm.Get(PromptBreakdown)
}

func (pm *PromptManager) GetSplitPrompt() (string, error) {
	return pm.Get(PromptSplit)
}

func (pm *PromptManager) GetCompanionPrompt() (string, error) {
	return pm.Get(PromptCompanion)
}
