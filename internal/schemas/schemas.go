// Package schemas holds the embedded JSON Schema definitions for each
// structured model output and validates documents against them.
package schemas

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Schema names, one per structured output shape.
const (
	JobDescription     = "job_description"
	RankedRepositories = "ranked_repositories"
	ResumeContent      = "resume_content"
)

//go:embed definitions/*.schema.json
var definitionsFS embed.FS

var (
	mu     sync.RWMutex
	loaded = make(map[string]string)
)

// Get returns the named schema definition as a JSON string.
func Get(name string) (string, error) {
	mu.RLock()
	if content, ok := loaded[name]; ok {
		mu.RUnlock()
		return content, nil
	}
	mu.RUnlock()

	raw, err := definitionsFS.ReadFile("definitions/" + name + ".schema.json")
	if err != nil {
		return "", &SchemaLoadError{Name: name, Message: "unknown schema", Cause: err}
	}
	content := string(raw)

	mu.Lock()
	loaded[name] = content
	mu.Unlock()
	return content, nil
}

// MustGet is Get for schemas known at compile time; it panics on a missing
// name.
func MustGet(name string) string {
	content, err := Get(name)
	if err != nil {
		panic(fmt.Sprintf("schemas: %v", err))
	}
	return content
}

// Names lists the embedded schema names.
func Names() []string {
	entries, err := definitionsFS.ReadDir("definitions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".schema.json"))
	}
	sort.Strings(names)
	return names
}
