package repository

import (
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm/clause"
)

const (
	DateFieldCreated = "created"
	DateFieldUpdated = "updated"
)

// IssueFilter 问题列表筛选条件，字段为空表示不筛选
type IssueFilter struct {
	Status        string
	CheckType     string
	SupplierID    string
	ProductID     string
	StartDate     string // YYYY-MM-DD
	EndDate       string // YYYY-MM-DD
	DateField     string // created/updated
	ShowCompleted bool
}

// includesCompleted 完成类伪状态本身就要求返回已完成的问题
func (f IssueFilter) includesCompleted() bool {
	return f.ShowCompleted ||
		f.Status == entity.StatusFilterComplete ||
		f.Status == entity.StatusFilterResolvedOrComplete
}

func (f IssueFilter) dateColumn() string {
	if f.DateField == DateFieldUpdated {
		return "i.updated_at"
	}
	return "i.created_at"
}

// Clauses 把筛选条件转换为查询条件列表，列表和计数共用
func (f IssueFilter) Clauses() []clause.Expression {
	var exprs []clause.Expression

	switch f.Status {
	case "":
	case entity.StatusFilterComplete:
		exprs = append(exprs, clause.Expr{
			SQL:  "(i.is_complete = ? OR i.status = ?)",
			Vars: []interface{}{true, entity.StatusFilterComplete},
		})
	case entity.StatusFilterResolvedOrComplete:
		exprs = append(exprs, clause.Expr{
			SQL:  "(i.status = ? OR i.is_complete = ? OR i.status = ?)",
			Vars: []interface{}{entity.IssueStatusResolved, true, entity.StatusFilterComplete},
		})
	default:
		exprs = append(exprs, clause.Expr{SQL: "i.status = ?", Vars: []interface{}{f.Status}})
	}

	if !f.includesCompleted() {
		exprs = append(exprs, clause.Expr{SQL: "i.is_complete = ?", Vars: []interface{}{false}})
	}

	if f.CheckType != "" {
		exprs = append(exprs, clause.Expr{SQL: "i.check_type = ?", Vars: []interface{}{f.CheckType}})
	}
	if f.SupplierID != "" {
		exprs = append(exprs, clause.Expr{SQL: "i.supplier_id = ?", Vars: []interface{}{f.SupplierID}})
	}
	if f.ProductID != "" {
		exprs = append(exprs, clause.Expr{SQL: "i.product_id = ?", Vars: []interface{}{f.ProductID}})
	}

	// 按天比较
	col := f.dateColumn()
	if f.StartDate != "" {
		exprs = append(exprs, clause.Expr{SQL: "DATE(" + col + ") >= ?", Vars: []interface{}{f.StartDate}})
	}
	if f.EndDate != "" {
		exprs = append(exprs, clause.Expr{SQL: "DATE(" + col + ") <= ?", Vars: []interface{}{f.EndDate}})
	}

	return exprs
}
