package domain

import "time"

// IngestRun 一次 pipeline 執行的紀錄，不論成功或失敗都會寫入
type IngestRun struct {
	ID         string          `bson:"_id" json:"id"`
	OwnerID    string          `bson:"owner_id" json:"ownerId"`
	FileName   string          `bson:"file_name" json:"fileName"`
	Title      string          `bson:"title" json:"title"`
	State      PipelineState   `bson:"state" json:"state"`
	History    []PipelineState `bson:"history" json:"history"`
	PartCount  int             `bson:"part_count" json:"partCount"`
	VideoID    uint            `bson:"video_id,omitempty" json:"videoId,omitempty"`
	Error      string          `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time       `bson:"started_at" json:"startedAt"`
	FinishedAt time.Time       `bson:"finished_at" json:"finishedAt"`
}
