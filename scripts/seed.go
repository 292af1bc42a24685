// Seed script for creating a demo tenant and analytics schema.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const demoConfig = `{
	"name": "Parque Europa",
	"description": "Réplicas de monumentos europeos en Torrejón de Ardoz",
	"frontendMode": "gps",
	"triggerRadiusMeters": 35
}
`

const demoCoordinates = `{
	"monuments": {
		"torre_eiffel": {
			"name": "Torre Eiffel",
			"coordinates": {"latitude": 40.42384, "longitude": -3.46063},
			"original_country": "Francia",
			"original_city": "París"
		},
		"puerta_brandeburgo": {
			"name": "Puerta de Brandeburgo",
			"coordinates": {"latitude": 40.42456, "longitude": -3.46221},
			"original_country": "Alemania",
			"original_city": "Berlín"
		},
		"fontana_trevi": {
			"name": "Fontana di Trevi",
			"coordinates": {"latitude": 40.42311, "longitude": -3.45978},
			"original_country": "Italia",
			"original_city": "Roma"
		}
	}
}
`

const demoLabels = `["locomotora_030", "vagon_correo", "grua_taller", "otros"]
`

func main() {
	envFile := os.Getenv("GUIDEITOR_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	tenantsDir := os.Getenv("TENANTS_DIR")
	if tenantsDir == "" {
		tenantsDir = "tenants"
	}

	seedTenant(tenantsDir, "parque_europa", demoConfig, demoCoordinates, "")
	seedTenant(tenantsDir, "museo_ferrocarril",
		`{"name": "Museo del Ferrocarril", "frontendMode": "vision"}
`, "", demoLabels)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("DATABASE_URL not set, skipping schema setup")
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("Connected to database")

	schema, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		log.Fatalf("Failed to read migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	fmt.Println("Applied analytics schema")
}

func seedTenant(dir, id, config, coordinates, labels string) {
	tenantDir := filepath.Join(dir, id)
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		log.Fatalf("Failed to create tenant dir: %v", err)
	}
	writeIfMissing(filepath.Join(tenantDir, "config.json"), config)
	if coordinates != "" {
		writeIfMissing(filepath.Join(tenantDir, "coordinates.json"), coordinates)
	}
	if labels != "" {
		writeIfMissing(filepath.Join(tenantDir, "labels.json"), labels)
	}
	fmt.Printf("Seeded tenant: %s\n", id)
}

func writeIfMissing(path, content string) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
}
