package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// SQL stores records in the sneakers table. Updates and deletes lock the row
// (SELECT ... FOR UPDATE where the dialect supports it) for the whole
// read-merge-write.
type SQL struct {
	db  *gorm.DB
	log *obs.Log
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, log: obs.Logger.With("repo", "SneakerRepo")}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *SQL) List(ctx context.Context) ([]model.Product, error) {
	var rows []model.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Product{}
	}
	return rows, nil
}

func (s *SQL) Get(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return model.Product{}, notFound(err)
	}
	return p, nil
}

func (s *SQL) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = 0
	p.Features = emptyIfNil(p.Features)
	var out model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.First(&out, p.ID).Error
	})
	if err != nil {
		return model.Product{}, err
	}
	s.log.Debug("sneaker_row_inserted", "id", out.ID)
	return out, nil
}

func (s *SQL) Update(ctx context.Context, id int64, patch Patch, total TotalFunc) (model.Product, error) {
	var out model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, id).Error; err != nil {
			return notFound(err)
		}
		next, err := patch.apply(cur, total)
		if err != nil {
			return err
		}
		next.Features = emptyIfNil(next.Features)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		return tx.First(&out, id).Error
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

func (s *SQL) Delete(ctx context.Context, id int64) (model.Product, error) {
	var cur model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, id).Error; err != nil {
			return notFound(err)
		}
		res := tx.Delete(&model.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	s.log.Debug("sneaker_row_deleted", "id", id)
	return cur, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
