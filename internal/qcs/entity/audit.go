package entity

import "time"

// AuditTrailEntry 审计记录，只追加
type AuditTrailEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	IssueID   string    `json:"issue_id" gorm:"size:32;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:32;not null"`
	Action    string    `json:"action" gorm:"size:30;not null"`
	OldStatus *string   `json:"old_status" gorm:"size:30"`
	NewStatus *string   `json:"new_status" gorm:"size:30"`
	Notes     *string   `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	Issue *Issue `json:"-" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
}

func (AuditTrailEntry) TableName() string {
	return "audit_trail"
}

// 审计动作
const (
	AuditActionCreated        = "created"
	AuditActionStatusChange   = "status_change"
	AuditActionMarkedComplete = "marked_complete"
	AuditActionUpdated        = "updated"
)

type AuditTrailView struct {
	AuditTrailEntry
	UserName *string `json:"user_name"`
}
