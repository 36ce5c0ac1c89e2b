package domain

import (
	"io"
	"time"
)

// PartMetadata 一個實際上傳到物件儲存的分段檔案
type PartMetadata struct {
	ID               uint     `gorm:"primaryKey" json:"-"`
	VideoID          uint     `gorm:"index;not null" json:"-"`
	PartIndex        int      `gorm:"not null" json:"partIndex"`
	PublicID         string   `gorm:"uniqueIndex;not null" json:"publicId"`
	RemoteURL        string   `json:"remoteUrl"`
	Format           string   `json:"format"`
	DurationSeconds  float64  `json:"durationSeconds"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	BitRate          *int64   `json:"bitRate,omitempty"`
	FrameRate        *float64 `json:"frameRate,omitempty"`
	VideoCodec       *string  `json:"videoCodec,omitempty"`
	AudioCodec       *string  `json:"audioCodec,omitempty"`
	ByteSize         int64    `json:"byteSize"`
	StorageNamespace string   `json:"storageNamespace"`
}

// TableName gorm table name
func (PartMetadata) TableName() string { return "video_parts" }

// VideoRecord 一支邏輯影片；多分段時 Parts 依 PartIndex 排序
type VideoRecord struct {
	ID                   uint     `gorm:"primaryKey" json:"id"`
	OwnerID              string   `gorm:"index;not null" json:"ownerId"`
	Title                string   `gorm:"not null" json:"title"`
	Description          *string  `json:"description,omitempty"`
	PrimaryPartID        string   `gorm:"index;not null" json:"primaryPartId"`
	PrimaryURL           string   `json:"primaryUrl"`
	ThumbnailRef         string   `json:"thumbnailRef"`
	StorageNamespace     string   `json:"storageNamespace"`
	TotalDurationSeconds float64  `json:"totalDurationSeconds"`
	TotalByteSize        int64    `json:"totalByteSize"`
	Width                int      `json:"width"`
	Height               int      `json:"height"`
	Format               string   `json:"format"`
	BitRate              *int64   `json:"bitRate,omitempty"`
	FrameRate            *float64 `json:"frameRate,omitempty"`
	VideoCodec           *string  `json:"videoCodec,omitempty"`
	AudioCodec           *string  `json:"audioCodec,omitempty"`
	IsMultipart          bool     `json:"isMultipart"`
	// TotalParts 直傳時為 1
	TotalParts int            `json:"totalParts,omitempty"`
	Parts      []PartMetadata `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"parts,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// TableName gorm table name
func (VideoRecord) TableName() string { return "videos" }

// PublicIDs primary id followed by every part id, without duplicates.
func (v *VideoRecord) PublicIDs() []string {
	seen := make(map[string]struct{}, len(v.Parts)+1)
	ids := make([]string, 0, len(v.Parts)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(v.PrimaryPartID)
	for _, p := range v.Parts {
		add(p.PublicID)
	}
	return ids
}

// IngestJob usecase upload video request, the VideoAsset of one pipeline run
type IngestJob struct {
	OwnerID     string
	Title       string
	Description string
	FileName    string
	File        io.Reader
	Target      StoreTarget
}

// VideoPatch metadata edit; nil fields are left untouched
type VideoPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Fields gorm column map for UpdateFields
func (p VideoPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	return fields
}

// DeleteVideoRes result of a delete request
type DeleteVideoRes struct {
	Deleted   bool     `json:"deleted"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// PlaybackPart one source of the seamless player
type PlaybackPart struct {
	Index           int     `json:"index"`
	PublicID        string  `json:"publicId"`
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
	OffsetSeconds   float64 `json:"offsetSeconds"`
}

// PlaybackManifest what the player needs to build its unified timeline
type PlaybackManifest struct {
	VideoID              uint           `json:"videoId"`
	Title                string         `json:"title"`
	TotalDurationSeconds float64        `json:"totalDurationSeconds"`
	IsMultipart          bool           `json:"isMultipart"`
	Parts                []PlaybackPart `json:"parts"`
	ExpiresAt            time.Time      `json:"expiresAt"`
}
