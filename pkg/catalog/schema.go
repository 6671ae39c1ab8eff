// pkg/catalog/schema.go
package catalog

// Roles a product can play in the funnel.
const (
	RolePrimary = "primary"
	RoleBump    = "bump"
	RoleOther   = "other"
)

type ProductCatalog struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Products    []Product `json:"products"`
}

type Product struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Role            string   `json:"role"`
	PriceMinorUnits int64    `json:"priceMinorUnits"`
	SKU             string   `json:"sku,omitempty"`
	Segments        []string `json:"segments,omitempty"`
}

const productCatalogSchema = `{
  "type": "object",
  "required": ["version", "products"],
  "properties": {
    "version": { "type": "string", "minLength": 1 },
    "products": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["slug", "name", "role"],
        "properties": {
          "slug":            { "type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$" },
          "name":            { "type": "string", "minLength": 1 },
          "role":            { "type": "string", "enum": ["primary", "bump", "other"] },
          "priceMinorUnits": { "type": "integer", "minimum": 0 }
        }
      }
    }
  }
}`
