package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bloomcare/careflow/pkg/models"
)

// LoadDir reads template definitions from every *.json file in a
// directory. Validation happens in New, not here.
func LoadDir(path string) ([]*models.WorkflowTemplate, error) {
	root := os.DirFS(path)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list template files: %w", err)
	}

	templates := make([]*models.WorkflowTemplate, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		data, err := os.ReadFile(filepath.Join(path, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", file, err)
		}

		var template models.WorkflowTemplate
		if err := json.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to decode template %s: %w", file, err)
		}

		templates = append(templates, &template)
	}

	return templates, nil
}
