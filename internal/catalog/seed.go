package catalog

import (
	"context"
	"encoding/json"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/apierr"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
)

// Samples are the records written by reset-db.
func Samples() []Input {
	return []Input{
		{
			Name:      json.RawMessage(`"Classic Street Runner"`),
			BasePrice: json.RawMessage(`85`),
			Features: json.RawMessage(`{
				"color": {"id": "black", "name": "Jet Black", "price": 0, "image": "https://i.imgur.com/9M6Kq1K.png"},
				"material": {"id": "canvas", "name": "Canvas", "price": 0},
				"sole": {"id": "standard", "name": "Standard", "price": 0}
			}`),
		},
		{
			Name:      json.RawMessage(`"Premium Suede Edition"`),
			BasePrice: json.RawMessage(`120`),
			Features: json.RawMessage(`{
				"color": {"id": "white", "name": "White/Neutral", "price": 5, "image": "https://i.imgur.com/3Qz6h0B.png"},
				"material": {"id": "suede", "name": "Suede", "price": 12},
				"sole": {"id": "vintage", "name": "Vintage", "price": 10}
			}`),
		},
	}
}

// Seed writes the sample records. Seeded records are not owned, so the
// ownership index is left alone.
func (s *Service) Seed(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, in := range Samples() {
		p, err := s.build(in)
		if err != nil {
			return out, err
		}
		created, err := s.records.Create(ctx, p)
		if err != nil {
			return out, apierr.Internal(MsgCreateFailed, err)
		}
		s.log.Info("sneaker_seeded", "id", created.ID, "name", created.Name, "total_price", created.TotalPrice)
		out = append(out, created)
	}
	return out, nil
}
