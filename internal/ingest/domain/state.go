package domain

import "time"

// PipelineState ingest pipeline state
type PipelineState string

const (
	StateStaged         PipelineState = "staged"
	StateProbed         PipelineState = "probed"
	StateDirectUpload   PipelineState = "direct_upload"
	StateSplit          PipelineState = "split"
	StatePartsUploading PipelineState = "parts_uploading"
	StateAssembling     PipelineState = "assembling"
	StateComplete       PipelineState = "complete"
	StateFailed         PipelineState = "failed"
)

var pipelineTransitions = map[PipelineState][]PipelineState{
	StateStaged:         {StateProbed},
	StateProbed:         {StateDirectUpload, StateSplit},
	StateDirectUpload:   {StateAssembling},
	StateSplit:          {StatePartsUploading},
	StatePartsUploading: {StateAssembling},
	StateAssembling:     {StateComplete},
}

// CanTransition Failed is reachable from every non-terminal state.
func (s PipelineState) CanTransition(to PipelineState) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range pipelineTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal complete or failed
func (s PipelineState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// EventType video lifecycle event
type EventType string

const (
	EventVideoIngested     EventType = "video.ingested"
	EventVideoDeleted      EventType = "video.deleted"
	EventVideoDeleteFailed EventType = "video.delete_failed"
)

// VideoEvent published after ingest / delete decisions
type VideoEvent struct {
	Type       EventType `json:"type"`
	VideoID    uint      `json:"videoId"`
	OwnerID    string    `json:"ownerId"`
	PublicIDs  []string  `json:"publicIds,omitempty"`
	FailedIDs  []string  `json:"failedIds,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	// ReconcileQueueName partial deletes waiting for another reconcile round
	ReconcileQueueName = "reconcile_retry"
)

// ReconcileJob 刪除未完成的影片，交給背景 worker 重新對帳
type ReconcileJob struct {
	VideoID   uint     `json:"video_id"`
	OwnerID   string   `json:"owner_id"`
	PublicIDs []string `json:"public_ids"`
	Attempt   int      `json:"attempt"`
}
