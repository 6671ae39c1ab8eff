// cmd/tools/catalog-seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"purchase-fulfillment/internal/common/config"
	"purchase-fulfillment/internal/common/database"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
	grantaccess "purchase-fulfillment/internal/pipeline/access/grant-access"
	"purchase-fulfillment/pkg/catalog"
)

var catalogPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, seedCmd} {
		fs.StringVar(&catalogPath, "path", "configs/product-catalog.json", "Path to catalog file")
	}

	// Add command flags
	slugAdd := addCmd.String("slug", "", "Product slug (e.g., resistance-mapping-guide)")
	name := addCmd.String("name", "", "Display name")
	role := addCmd.String("role", catalog.RoleOther, "Role (primary, bump, other)")
	price := addCmd.Int64("price", 0, "Price in minor units")
	sku := addCmd.String("sku", "", "Order system SKU")

	// Update command flags
	slugUpdate := updateCmd.String("slug", "", "Product slug to update")
	field := updateCmd.String("field", "", "Field to update (name, role, price, sku, description)")
	value := updateCmd.String("value", "", "New value for the field")

	// Seed command flags
	dryRun := seedCmd.Bool("dry-run", false, "Validate and print without writing")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *slugAdd == "" || *name == "" {
			fmt.Println("Error: slug and name are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		product := catalog.Product{Slug: *slugAdd, Name: *name, Role: *role, PriceMinorUnits: *price, SKU: *sku}
		if err := addProduct(&product); err != nil {
			fmt.Printf("Error adding product: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added product: %s\n", *slugAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *slugUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: slug, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateProduct(*slugUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating product: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated product %s, field %s to %s\n", *slugUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		c, err := catalog.LoadCatalog(catalogPath)
		if err == nil {
			err = catalog.Validate(c)
		}
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed. Found %d products.\n", len(c.Products))

	case "seed":
		seedCmd.Parse(os.Args[2:])
		if err := seed(*dryRun); err != nil {
			fmt.Printf("Seeding failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addProduct(product *catalog.Product) error {
	c, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c = &catalog.ProductCatalog{Version: "1.0.0"}
	}

	if _, exists := c.Find(product.Slug); exists {
		return fmt.Errorf("product with slug %s already exists", product.Slug)
	}
	c.Products = append(c.Products, *product)
	return catalog.SaveCatalog(c, catalogPath)
}

func updateProduct(slug, field, value string) error {
	c, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	p, ok := c.Find(slug)
	if !ok {
		return fmt.Errorf("product with slug %s not found", slug)
	}
	switch field {
	case "name":
		p.Name = value
	case "description":
		p.Description = value
	case "role":
		p.Role = value
	case "sku":
		p.SKU = value
	case "price":
		minor, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid price value: %w", err)
		}
		p.PriceMinorUnits = minor
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return catalog.SaveCatalog(c, catalogPath)
}

// seed upserts every catalog product into the account store and drops the
// cached copies so the server picks the change up immediately.
func seed(dryRun bool) error {
	c, err := catalog.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := catalog.Validate(c); err != nil {
		return err
	}
	if dryRun {
		for _, p := range c.Products {
			fmt.Printf("would upsert %-32s %-8s %d\n", p.Slug, p.Role, p.PriceMinorUnits)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}

	store := grantaccess.NewPostgresStore(pg.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	slugs := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		id, err := store.UpsertProduct(ctx, &models.Product{
			ID:              uuid.NewString(),
			Slug:            p.Slug,
			Name:            p.Name,
			PriceMinorUnits: p.PriceMinorUnits,
		})
		if err != nil {
			return err
		}
		slugs = append(slugs, p.Slug)
		log.Info("Product upserted", map[string]interface{}{"slug": p.Slug, "productId": id})
	}

	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()
	cached := grantaccess.NewCachedCatalog(store, rdb.Client, time.Duration(cfg.Database.Redis.ProductCacheTTL)*time.Second, log)
	if err := cached.Invalidate(ctx, slugs...); err != nil {
		log.Warn("Product cache not invalidated, entries expire on their own", map[string]interface{}{"error": err})
	}

	fmt.Printf("Seeded %d products.\n", len(slugs))
	return nil
}

func help() {
	fmt.Print(`
Usage: catalog-seeder <command> [flags]

Commands:
  add      Add a product to the catalog file
  update   Update a product's field
  validate Validate the catalog file
  seed     Upsert the catalog into Postgres and invalidate the product cache
  help     Show this help message

Examples:
  catalog-seeder add -slug golden-thread-technique -name "Golden Thread Technique" -role bump
  catalog-seeder update -slug resistance-mapping-guide -field price -value 700
  catalog-seeder validate -path configs/product-catalog.json
  catalog-seeder seed -dry-run

Use 'catalog-seeder <command> -h' for more information about a command.
` + "\n")
}
