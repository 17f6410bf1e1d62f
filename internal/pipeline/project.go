package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"capital-stack-lab/internal/domain"
)

// LoadProject reads a project JSON file. Unknown fields are rejected.
func LoadProject(path string) (domain.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Project{}, fmt.Errorf("read project file: %w", err)
	}
	return ParseProject(data)
}

// ParseProject decodes and validates a project.
func ParseProject(data []byte) (domain.Project, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p domain.Project
	if err := dec.Decode(&p); err != nil {
		return domain.Project{}, fmt.Errorf("decode project json: %w", err)
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}
