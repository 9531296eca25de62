package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ownedDocument struct {
	Name      string         `gorm:"primaryKey;size:64"`
	Body      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (ownedDocument) TableName() string { return "owned_documents" }

// TableDocument stores the ids as a JSON array in one database row.
// Updates lock the row, so concurrent processes do not lose writes.
type TableDocument struct {
	db   *gorm.DB
	name string
}

// NewTableDocument migrates the owned_documents table.
func NewTableDocument(db *gorm.DB, name string) (*TableDocument, error) {
	if err := db.AutoMigrate(&ownedDocument{}); err != nil {
		return nil, fmt.Errorf("migrate owned_documents: %w", err)
	}
	return &TableDocument{db: db, name: name}, nil
}

func (d *TableDocument) Load(ctx context.Context) ([]int64, error) {
	var row ownedDocument
	err := d.db.WithContext(ctx).First(&row, "name = ?", d.name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeIDs(row.Body)
}

func (d *TableDocument) Update(ctx context.Context, fn func([]int64) ([]int64, bool)) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := ownedDocument{Name: d.name, Body: datatypes.JSON("[]")}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		var row ownedDocument
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "name = ?", d.name).Error; err != nil {
			return err
		}
		ids, err := decodeIDs(row.Body)
		if err != nil {
			return err
		}
		next, changed := fn(ids)
		if !changed {
			return nil
		}
		if next == nil {
			next = []int64{}
		}
		body, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return tx.Model(&ownedDocument{}).Where("name = ?", d.name).
			Updates(map[string]any{"body": datatypes.JSON(body), "updated_at": time.Now().UTC()}).Error
	})
}

func decodeIDs(body datatypes.JSON) ([]int64, error) {
	if len(body) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("decode owned ids: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
