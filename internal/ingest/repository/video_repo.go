package repository

import (
	"context"
	"errors"

	"video_ingest_service/internal/ingest/domain"

	"gorm.io/gorm"
)

// VideoRepo persistence of VideoRecord and its parts. Every lookup is
// scoped by owner.
type VideoRepo interface {
	AutoMigrate() error
	Create(ctx context.Context, video *domain.VideoRecord) error
	FindByOwnerAndID(ctx context.Context, ownerID string, id uint) (*domain.VideoRecord, error)
	UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) error
	DeleteByID(ctx context.Context, ownerID string, id uint) error
}

type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepo create VideoRepo
func NewVideoRepo(db *gorm.DB) VideoRepo {
	return &videoRepo{db: db}
}

// AutoMigrate 建立 videos / video_parts；只適合開發與測試環境，正式環境請走 migration
func (r *videoRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.VideoRecord{}, &domain.PartMetadata{})
}

// Create 在同一個 transaction 內寫入影片與所有分段，失敗時不留下半筆資料
func (r *videoRepo) Create(ctx context.Context, video *domain.VideoRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(video).Error
	})
}

// FindByOwnerAndID parts are ordered by part_index
func (r *videoRepo) FindByOwnerAndID(ctx context.Context, ownerID string, id uint) (*domain.VideoRecord, error) {
	var video domain.VideoRecord
	err := r.db.WithContext(ctx).
		Preload("Parts", func(db *gorm.DB) *gorm.DB {
			return db.Order("part_index ASC")
		}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// UpdateFields only title / description are editable
func (r *videoRepo) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&domain.VideoRecord{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByID 連同分段一起刪除
func (r *videoRepo) DeleteByID(ctx context.Context, ownerID string, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("owner_id = ? AND id = ?", ownerID, id).Delete(&domain.VideoRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("video_id = ?", id).Delete(&domain.PartMetadata{}).Error
	})
}
