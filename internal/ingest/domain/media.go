package domain

// MediaInfo probe result of one media file. Fields default to zero values
// when the stream is missing.
type MediaInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
	FrameRate       float64
	BitRate         int64
	FormatName      string
}

// StoreTarget bucket + namespace passed explicitly to every store call
type StoreTarget struct {
	Bucket    string
	Namespace string
}

// UploadOptions object store upload options
type UploadOptions struct {
	ContentType string
	Overwrite   bool
}

// StoredObject store-side view of an uploaded object. Optional media fields
// are only filled by stores that inspect the payload.
type StoredObject struct {
	PublicID        string
	URL             string
	Bytes           int64
	DurationSeconds *float64
	Width           *int
	Height          *int
}
