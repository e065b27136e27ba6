package entity

import "time"

// Comment 问题评论，创建后不可修改
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	IssueID   string    `json:"issue_id" gorm:"size:32;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:32;not null"`
	Body      string    `json:"comment" gorm:"column:comment;type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Issue *Issue `json:"-" gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE"`
}

func (Comment) TableName() string {
	return "issue_comments"
}

type CommentView struct {
	Comment
	UserName *string `json:"user_name"`
}
