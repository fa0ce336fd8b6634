package model

import "time"

type Document struct {
	ID          string
	OrgID       int64
	Title       string
	FileName    string
	ObjectKey   string
	Size        int64
	ContentType string
	UploadedBy  int64
	CreatedAt   time.Time
}
