package batchcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt is one entry of a batch file.
type Prompt struct {
	Prompt string `yaml:"prompt"`
	System string `yaml:"system,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// jobFile is the YAML layout:
//
//	system: shared system prompt
//	model: shared model
//	jobs:
//	  - prompt: first
//	  - prompt: second
//	    model: override
type jobFile struct {
	System string   `yaml:"system"`
	Model  string   `yaml:"model"`
	Jobs   []Prompt `yaml:"jobs"`
}

// ParsePrompts reads a batch file. Files ending in .yaml or .yml use the YAML
// layout; anything else is one prompt per line, skipping blank lines and lines
// starting with '#'.
func ParsePrompts(name string, r io.Reader) ([]Prompt, error) {
	var (
		prompts []Prompt
		err     error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		prompts, err = parseYAML(r)
	default:
		prompts, err = parseLines(r)
	}
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, errors.New("batch file contains no prompts")
	}
	return prompts, nil
}

func parseYAML(r io.Reader) ([]Prompt, error) {
	var f jobFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing batch YAML: %w", err)
	}

	prompts := make([]Prompt, 0, len(f.Jobs))
	for i, j := range f.Jobs {
		j.Prompt = strings.TrimSpace(j.Prompt)
		if j.Prompt == "" {
			return nil, fmt.Errorf("job %d: prompt is empty", i+1)
		}
		if j.System == "" {
			j.System = f.System
		}
		if j.Model == "" {
			j.Model = f.Model
		}
		prompts = append(prompts, j)
	}
	return prompts, nil
}

func parseLines(r io.Reader) ([]Prompt, error) {
	var prompts []Prompt

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, Prompt{Prompt: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return prompts, nil
}
