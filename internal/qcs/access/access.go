// Package access 认证主体与能力校验
package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")

	ErrMissingToken = fmt.Errorf("%w: missing token", ErrUnauthenticated)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	ErrInactiveUser = fmt.Errorf("%w: user not found or inactive", ErrUnauthenticated)
)

// Principal 已认证的调用方
type Principal struct {
	UserID    string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Capability 操作能力
type Capability string

const (
	IssueRead       Capability = "issue:read"
	IssueCreate     Capability = "issue:create"
	IssueComment    Capability = "issue:comment"
	IssueAttach     Capability = "issue:attach"
	IssueManage     Capability = "issue:manage"
	IssueExport     Capability = "issue:export"
	ReferenceManage Capability = "reference:manage"
	UserManage      Capability = "user:manage"
)

var allCapabilities = []Capability{
	IssueRead, IssueCreate, IssueComment, IssueAttach,
	IssueManage, IssueExport, ReferenceManage, UserManage,
}

// Decision 校验结果
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Err 把结果转换为错误，Allowed返回nil
func (d Decision) Err(c Capability) error {
	switch d {
	case Allowed:
		return nil
	case Unauthenticated:
		return ErrUnauthenticated
	default:
		return fmt.Errorf("%w: %s", ErrForbidden, c)
	}
}

// Gate 角色到能力的映射
type Gate struct {
	grants map[string]map[Capability]bool
}

// DefaultGate admin拥有全部能力，user可查看、创建、评论和上传照片
func DefaultGate() *Gate {
	return NewGate(map[string][]Capability{
		"admin": allCapabilities,
		"user":  {IssueRead, IssueCreate, IssueComment, IssueAttach},
	})
}

func NewGate(grants map[string][]Capability) *Gate {
	g := &Gate{grants: make(map[string]map[Capability]bool, len(grants))}
	for role, caps := range grants {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		g.grants[role] = set
	}
	return g
}

// Check 校验主体是否拥有能力
func (g *Gate) Check(p *Principal, c Capability) Decision {
	if p == nil || p.UserID == "" {
		return Unauthenticated
	}
	if g.grants[p.Role][c] {
		return Allowed
	}
	return Forbidden
}

// Require Check的错误形式
func (g *Gate) Require(p *Principal, c Capability) error {
	return g.Check(p, c).Err(c)
}

// Capabilities 返回角色拥有的能力
func (g *Gate) Capabilities(role string) []Capability {
	var caps []Capability
	for _, c := range allCapabilities {
		if g.grants[role][c] {
			caps = append(caps, c)
		}
	}
	return caps
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext 取出主体，不存在时返回nil
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
