package entity

import "time"

// Issue 质量问题单
type Issue struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	IssueSeq    int    `json:"-" gorm:"uniqueIndex;not null"`
	IssueNumber string `json:"issue_number" gorm:"size:20;uniqueIndex;not null"`
	CheckType   string `json:"check_type" gorm:"size:20;not null"` // vehicle/product
	Status      string `json:"status" gorm:"size:30;default:pending;index"`
	IsComplete  bool   `json:"is_complete" gorm:"default:false;index"`

	SupplierID *string `json:"supplier_id" gorm:"size:32;index"`
	ProductID  *string `json:"product_id" gorm:"size:32;index"`

	// 车辆检查
	Haulier           string `json:"haulier" gorm:"size:100"`
	LorryRegistration string `json:"lorry_registration" gorm:"size:50"`
	VehicleOrigin     string `json:"vehicle_origin" gorm:"size:100"`

	// 产品检查
	Origin             string `json:"origin" gorm:"size:100"`
	LotNumber          string `json:"lot_number" gorm:"size:100"`
	ItemNo             string `json:"item_no" gorm:"size:100"`
	AffectedItem       string `json:"affected_item" gorm:"size:200"`
	PalletsAffected    *int   `json:"pallets_affected"`
	PalletType         string `json:"pallet_type" gorm:"size:50"`
	TotalCasesAffected *int   `json:"total_cases_affected"`
	PiecesPerUnit      *int   `json:"pieces_per_unit"`
	QuantityType       string `json:"quantity_type" gorm:"size:50"`

	IssueType   string `json:"issue_type" gorm:"size:100"`
	Description string `json:"description" gorm:"type:text"`
	Notes       string `json:"notes" gorm:"type:text"`

	AssignedTo *string `json:"assigned_to" gorm:"size:32"`
	CreatedBy  string  `json:"created_by" gorm:"size:32;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Issue) TableName() string {
	return "issues"
}

// 检查类型
const (
	CheckTypeVehicle = "vehicle"
	CheckTypeProduct = "product"
)

// 问题状态
const (
	IssueStatusPending              = "pending"
	IssueStatusAwaitingConfirmation = "awaiting_confirmation"
	IssueStatusAccepted             = "accepted"
	IssueStatusRejected             = "rejected"
	IssueStatusResolved             = "resolved"
)

// 查询用伪状态，不会写入status列
const (
	StatusFilterComplete           = "complete"
	StatusFilterResolvedOrComplete = "resolved_or_complete"
)

// IssueNumberFloor 空表时从该值之后开始编号
const IssueNumberFloor = 35000

var issueStatuses = map[string]bool{
	IssueStatusPending:              true,
	IssueStatusAwaitingConfirmation: true,
	IssueStatusAccepted:             true,
	IssueStatusRejected:             true,
	IssueStatusResolved:             true,
}

// IsValidStatus 状态只做集合校验，不限制流转顺序
func IsValidStatus(status string) bool {
	return issueStatuses[status]
}

// IsValidCheckType 校验检查类型
func IsValidCheckType(checkType string) bool {
	return checkType == CheckTypeVehicle || checkType == CheckTypeProduct
}

// IssueListItem 列表行
type IssueListItem struct {
	Issue
	SupplierName  *string `json:"supplier_name"`
	ProductName   *string `json:"product_name"`
	CreatedByName *string `json:"created_by_name"`
	PhotoCount    int64   `json:"photo_count"`
}

// IssueDetail 详情，包含照片、审计记录和评论
type IssueDetail struct {
	Issue
	SupplierName   *string `json:"supplier_name"`
	SupplierCode   *string `json:"supplier_code"`
	ProductName    *string `json:"product_name"`
	ProductItemNo  *string `json:"product_item_no"`
	CreatedByName  *string `json:"created_by_name"`
	AssignedToName *string `json:"assigned_to_name"`

	Photos     []Photo          `json:"photos" gorm:"-"`
	AuditTrail []AuditTrailView `json:"audit_trail" gorm:"-"`
	Comments   []CommentView    `json:"comments" gorm:"-"`
}

// IssueStats 看板统计
type IssueStats struct {
	Open                 int64 `json:"open"`
	AwaitingConfirmation int64 `json:"awaiting_confirmation"`
	ResolvedOrComplete   int64 `json:"resolved_or_complete"`
}
