// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"purchase-fulfillment/internal/common/validation"
)

var schema = validation.MustCompile(productCatalogSchema)

func LoadCatalog(path string) (*ProductCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c ProductCatalog
	err = json.Unmarshal(data, &c)
	return &c, err
}

// SaveCatalog stamps LastUpdated and writes the catalog as indented JSON.
func SaveCatalog(c *ProductCatalog, path string) error {
	c.LastUpdated = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Validate checks the catalog against its schema, then the rules the schema
// cannot express: unique slugs and exactly one primary product.
func Validate(c *ProductCatalog) error {
	result, err := schema.Validate(c)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("catalog schema: %s", result.Summary())
	}

	seen := make(map[string]bool, len(c.Products))
	primaries := 0
	for _, p := range c.Products {
		if seen[p.Slug] {
			return fmt.Errorf("duplicate product slug: %s", p.Slug)
		}
		seen[p.Slug] = true
		if p.Role == RolePrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("catalog must have exactly one primary product (found %d)", primaries)
	}
	return nil
}

func (c *ProductCatalog) Find(slug string) (*Product, bool) {
	for i := range c.Products {
		if c.Products[i].Slug == slug {
			return &c.Products[i], true
		}
	}
	return nil, false
}

// ByRole returns the first product with the given role.
func (c *ProductCatalog) ByRole(role string) (*Product, bool) {
	for i := range c.Products {
		if c.Products[i].Role == role {
			return &c.Products[i], true
		}
	}
	return nil, false
}
