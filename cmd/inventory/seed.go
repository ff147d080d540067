package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository/memory"
)

// seedFile is the YAML layout accepted by SEED_FILE for in-memory storage
type seedFile struct {
	Books []struct {
		ID           uint   `yaml:"id"`
		ProgramID    uint   `yaml:"program_id"`
		Title        string `yaml:"title"`
		Size         string `yaml:"size"`
		Price        string `yaml:"price"`
		InitialStock int    `yaml:"initial_stock"`
		Active       *bool  `yaml:"active"`
	} `yaml:"books"`
}

func loadSeed(path string, store *memory.Store) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, b := range seed.Books {
		price := decimal.Zero
		if b.Price != "" {
			if price, err = decimal.NewFromString(b.Price); err != nil {
				return 0, fmt.Errorf("book %d: invalid price %q: %w", b.ID, b.Price, err)
			}
		}
		size := domain.BookSize(b.Size)
		if b.Size != "" && !size.Valid() {
			return 0, fmt.Errorf("book %d: invalid size %q", b.ID, b.Size)
		}
		store.PutBook(domain.Book{
			ID:           b.ID,
			ProgramID:    b.ProgramID,
			Title:        b.Title,
			Size:         size,
			Price:        price,
			InitialStock: b.InitialStock,
			Stock:        b.InitialStock,
			IsActive:     b.Active == nil || *b.Active,
		})
	}
	return len(seed.Books), nil
}
