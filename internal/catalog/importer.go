package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/validation"
)

// File is the on-disk catalog format accepted by Import.
type File struct {
	Foods     []models.FoodItem `json:"foods" yaml:"foods"`
	Beverages []models.Beverage `json:"beverages" yaml:"beverages"`
}

// ReadFile decodes a catalog from YAML (.yaml, .yml) or JSON (anything else).
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, apperrors.Configuration("failed to parse catalog file %s: %v", path, err)
	}
	return &f, nil
}

// Sink is the part of the store Import writes to.
type Sink interface {
	SaveFoodItem(item models.FoodItem) error
	SaveBeverage(bev models.Beverage) error
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Foods     int
	Beverages int
	Annotated int
}

// Import validates every item up front, optionally derives dietary flags from
// ingredients, then saves foods and beverages. Nothing is written when
// validation fails.
func Import(sink Sink, f *File, annotator *Annotator) (ImportResult, error) {
	var result ImportResult

	check := validation.ValidateCatalog(f.Foods, f.Beverages)
	if err := check.Err(); err != nil {
		return result, err
	}

	for _, food := range f.Foods {
		if annotator != nil && annotator.Annotate(&food.DietaryFlags, food.Ingredients) {
			result.Annotated++
		}
		if err := sink.SaveFoodItem(food); err != nil {
			return result, apperrors.Store(fmt.Sprintf("save food item %s", food.ID), err)
		}
		result.Foods++
	}

	for _, bev := range f.Beverages {
		if annotator != nil && annotator.Annotate(&bev.DietaryFlags, bev.Ingredients) {
			result.Annotated++
		}
		if err := sink.SaveBeverage(bev); err != nil {
			return result, apperrors.Store(fmt.Sprintf("save beverage %s", bev.ID), err)
		}
		result.Beverages++
	}

	logger.Info("Catalog imported", "foods", result.Foods, "beverages", result.Beverages, "annotated", result.Annotated)
	return result, nil
}
