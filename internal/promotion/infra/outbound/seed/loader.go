package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/davicafu/promolab/internal/promotion/domain"
)

// File es el formato del fichero de semillas:
//
//	promotions:
//	  - promoId: SUMMER24
//	    startDate: 2024-06-01T00:00:00Z
//	    ...
type File struct {
	Promotions []domain.Promotion `yaml:"promotions"`
}

type Upserter interface {
	Upsert(ctx context.Context, p domain.Promotion) error
}

func LoadFile(path string) ([]domain.Promotion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) ([]domain.Promotion, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, p := range file.Promotions {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("promotion #%d (%s): %w", i, p.ID, err)
		}
	}
	return file.Promotions, nil
}

// Apply guarda todas las promociones; se detiene en el primer error.
func Apply(ctx context.Context, target Upserter, promos []domain.Promotion, log *zap.Logger) error {
	for _, p := range promos {
		if err := target.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed promotion %s: %w", p.ID, err)
		}
		log.Info("Promotion seeded", zap.String("promo_id", p.ID), zap.String("status", string(p.Status)))
	}
	return nil
}
