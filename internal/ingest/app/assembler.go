package app

import (
	"fmt"

	"video_ingest_service/internal/ingest/domain"
)

// AssembleInput parts must already be in index order
type AssembleInput struct {
	OwnerID     string
	Title       string
	Description string
	Parts       []domain.PartMetadata
}

// Assemble 把每個分段的上傳結果合成一筆 VideoRecord；不碰任何外部資源
//
// Duration and size are summed over all parts, part 0 supplies the
// representative fields. A single part is promoted to the top level and the
// record carries no Parts.
func Assemble(in AssembleInput) (*domain.VideoRecord, error) {
	if len(in.Parts) == 0 {
		return nil, fmt.Errorf("assemble %q without parts: %w", in.Title, domain.ErrInvalidInput)
	}

	primary := in.Parts[0]
	record := &domain.VideoRecord{
		OwnerID:          in.OwnerID,
		Title:            in.Title,
		PrimaryPartID:    primary.PublicID,
		PrimaryURL:       primary.RemoteURL,
		ThumbnailRef:     ThumbnailRef(primary.PublicID),
		StorageNamespace: primary.StorageNamespace,
		Width:            primary.Width,
		Height:           primary.Height,
		Format:           primary.Format,
		BitRate:          primary.BitRate,
		FrameRate:        primary.FrameRate,
		VideoCodec:       primary.VideoCodec,
		AudioCodec:       primary.AudioCodec,
		IsMultipart:      len(in.Parts) > 1,
		TotalParts:       len(in.Parts),
	}
	if in.Description != "" {
		d := in.Description
		record.Description = &d
	}

	for _, p := range in.Parts {
		record.TotalDurationSeconds += p.DurationSeconds
		record.TotalByteSize += p.ByteSize
	}

	if record.IsMultipart {
		record.Parts = make([]domain.PartMetadata, len(in.Parts))
		for i, p := range in.Parts {
			p.PartIndex = i
			record.Parts[i] = p
		}
	}
	return record, nil
}
