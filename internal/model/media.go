package model

import "time"

// ProcessingStatus is the analysis state of a media item
type ProcessingStatus string

const (
	StatusUnprocessed ProcessingStatus = "unprocessed"
	StatusAnalyzed    ProcessingStatus = "analyzed"
	StatusFailed      ProcessingStatus = "failed"
)

// MediaItem represents one downloaded video and its acquisition metadata
type MediaItem struct {
	ID           int64            `json:"id" db:"id"`
	SourceURL    string           `json:"source_url" db:"source_url"`
	ExternalID   string           `json:"video_id" db:"video_id"` // stable platform id
	Title        *string          `json:"title,omitempty" db:"title"`
	Description  *string          `json:"description,omitempty" db:"description"`
	Author       *string          `json:"author,omitempty" db:"author"`
	Duration     *int             `json:"duration,omitempty" db:"duration"` // seconds
	ViewCount    *int64           `json:"view_count,omitempty" db:"view_count"`
	LikeCount    *int64           `json:"like_count,omitempty" db:"like_count"`
	CommentCount *int64           `json:"comment_count,omitempty" db:"comment_count"`
	ShareCount   *int64           `json:"share_count,omitempty" db:"share_count"`
	FileSize     int64            `json:"file_size" db:"file_size"`
	StorageKey   *string          `json:"storage_key,omitempty" db:"storage_key"`
	IsAboutStew  *bool            `json:"is_about_stew,omitempty" db:"is_about_stew"`
	Status       ProcessingStatus `json:"processing_status" db:"processing_status"`
	DownloadedAt *time.Time       `json:"download_date,omitempty" db:"download_date"`
}

// AnalysisSelection controls which media items an analysis run picks up
type AnalysisSelection struct {
	IncludeBackfill bool // analyzed items that have no transcript
	ReprocessFailed bool
	Limit           int // 0 means no limit
}
