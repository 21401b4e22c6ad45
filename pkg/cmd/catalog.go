package cmd

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/registry"
)

// NewCatalog builds the template catalog from the built-in templates plus
// any JSON templates found under templatesPath. An empty path loads only
// the built-ins.
func NewCatalog(validate *validator.Validate, reg *registry.Registry, templatesPath string) (*catalog.Catalog, error) {
	templates := []*models.WorkflowTemplate{catalog.ClientIntake()}

	if templatesPath != "" {
		loaded, err := catalog.LoadDir(templatesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", templatesPath, err)
		}

		templates = append(templates, loaded...)
	}

	cat, err := catalog.New(validate, reg, templates...)
	if err != nil {
		return nil, fmt.Errorf("invalid template catalog: %w", err)
	}

	return cat, nil
}
