package entity

import "time"

// Photo 问题照片
type Photo struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	IssueID    string    `json:"issue_id" gorm:"size:32;not null;index"`
	FileName   string    `json:"file_name" gorm:"size:255;not null"`
	FilePath   string    `json:"file_path" gorm:"size:500;not null"`
	FileSize   int64     `json:"file_size"`
	MimeType   string    `json:"mime_type" gorm:"size:100"`
	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
	URL        string    `json:"url" gorm:"-"`

	Issue *Issue `json:"-" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
}

func (Photo) TableName() string {
	return "issue_photos"
}
