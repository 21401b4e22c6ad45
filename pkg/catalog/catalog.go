// Package catalog holds the static workflow template definitions. Templates
// are validated once at load time and read-only afterwards.
package catalog

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/registry"
)

// Catalog is the validated set of workflow templates known to the engine.
type Catalog struct {
	templates map[string]*models.WorkflowTemplate
}

// New validates every template (struct tags, structural invariants, and
// each action's parameter bag against the registry's schemas) and returns
// the catalog. Any configuration error is fatal here, never per instance.
func New(validate *validator.Validate, reg *registry.Registry, templates ...*models.WorkflowTemplate) (*Catalog, error) {
	catalog := &Catalog{
		templates: make(map[string]*models.WorkflowTemplate, len(templates)),
	}

	for _, template := range templates {
		if err := validate.Struct(template); err != nil {
			return nil, fmt.Errorf("template %s failed validation: %w", template.ID, err)
		}

		if err := template.Validate(); err != nil {
			return nil, err
		}

		for _, phase := range template.Phases {
			for _, action := range phase.Actions {
				if err := reg.ValidateSpec(action); err != nil {
					return nil, fmt.Errorf("template %s phase %d: %w", template.ID, phase.ID, err)
				}
			}
		}

		if _, exists := catalog.templates[template.ID]; exists {
			return nil, fmt.Errorf("duplicate template id %s", template.ID)
		}

		catalog.templates[template.ID] = template
	}

	return catalog, nil
}

// Template returns the template with the given id.
func (c *Catalog) Template(id string) (*models.WorkflowTemplate, bool) {
	template, ok := c.templates[id]

	return template, ok
}

// Templates returns all templates sorted by id.
func (c *Catalog) Templates() []*models.WorkflowTemplate {
	out := make([]*models.WorkflowTemplate, 0, len(c.templates))
	for _, template := range c.templates {
		out = append(out, template)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
