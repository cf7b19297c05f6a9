// internal/app/bootstrap/seed.go
package bootstrap

import (
	"context"
	"fmt"
	"os"

	districtstore "github.com/dalemusser/ekomurojaat/internal/app/store/districts"
	regionstore "github.com/dalemusser/ekomurojaat/internal/app/store/regions"
	"github.com/dalemusser/ekomurojaat/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// geoSeed is the YAML layout of geo_seed_file:
//
//	regions:
//	  - name: Toshkent viloyati
//	    districts: [Chirchiq, Angren]
type geoSeed struct {
	Regions []struct {
		Name      string   `yaml:"name"`
		Districts []string `yaml:"districts"`
	} `yaml:"regions"`
}

func loadGeoSeed(path string) (geoSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return geoSeed{}, fmt.Errorf("read geo seed: %w", err)
	}
	return parseGeoSeed(raw)
}

func parseGeoSeed(raw []byte) (geoSeed, error) {
	var seed geoSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return geoSeed{}, fmt.Errorf("parse geo seed: %w", err)
	}
	for i, r := range seed.Regions {
		if normalize.Name(r.Name) == "" {
			return geoSeed{}, fmt.Errorf("parse geo seed: region %d has no name", i+1)
		}
	}
	return seed, nil
}

// seedGeography creates the regions and districts of seed that do not exist
// yet. Existing records are left untouched, so the seed can run on every start.
func seedGeography(ctx context.Context, db *mongo.Database, seed geoSeed, logger *zap.Logger) error {
	regions := regionstore.New(db)
	districts := districtstore.New(db)

	var newRegions, newDistricts int
	for _, r := range seed.Regions {
		region, created, err := regions.Ensure(ctx, normalize.Name(r.Name))
		if err != nil {
			return fmt.Errorf("region %q: %w", r.Name, err)
		}
		if created {
			newRegions++
		}
		for _, d := range r.Districts {
			name := normalize.Name(d)
			if name == "" {
				continue
			}
			_, created, err := districts.Ensure(ctx, region.ID, name)
			if err != nil {
				return fmt.Errorf("district %q of %q: %w", d, r.Name, err)
			}
			if created {
				newDistricts++
			}
		}
	}
	logger.Info("geography seeded",
		zap.Int("regions_created", newRegions),
		zap.Int("districts_created", newDistricts))
	return nil
}
