package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateCheck(t *testing.T) {
	g := DefaultGate()
	admin := &Principal{UserID: "u1", Role: "admin"}
	user := &Principal{UserID: "u2", Role: "user"}

	tests := []struct {
		name string
		p    *Principal
		cap  Capability
		want Decision
	}{
		{"nil principal", nil, IssueRead, Unauthenticated},
		{"empty principal", &Principal{}, IssueRead, Unauthenticated},
		{"admin manage", admin, IssueManage, Allowed},
		{"admin users", admin, UserManage, Allowed},
		{"user read", user, IssueRead, Allowed},
		{"user create", user, IssueCreate, Allowed},
		{"user comment", user, IssueComment, Allowed},
		{"user attach", user, IssueAttach, Allowed},
		{"user manage", user, IssueManage, Forbidden},
		{"user export", user, IssueExport, Forbidden},
		{"unknown role", &Principal{UserID: "u3", Role: "guest"}, IssueRead, Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Check(tt.p, tt.cap))
		})
	}
}

func TestGateRequire(t *testing.T) {
	g := DefaultGate()

	assert.NoError(t, g.Require(&Principal{UserID: "u1", Role: "admin"}, IssueManage))

	err := g.Require(&Principal{UserID: "u2", Role: "user"}, IssueManage)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrUnauthenticated))

	err = g.Require(nil, IssueRead)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
}

func TestTokenErrorsAreUnauthenticated(t *testing.T) {
	for _, err := range []error{ErrMissingToken, ErrInvalidToken, ErrTokenExpired, ErrTokenRevoked, ErrInactiveUser} {
		assert.True(t, errors.Is(err, ErrUnauthenticated), err.Error())
	}
}

func TestCapabilities(t *testing.T) {
	g := DefaultGate()
	assert.Len(t, g.Capabilities("admin"), 8)
	assert.Equal(t, []Capability{IssueRead, IssueCreate, IssueComment, IssueAttach}, g.Capabilities("user"))
	assert.Empty(t, g.Capabilities("guest"))
}

func TestPrincipalContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	p := &Principal{UserID: "u1"}
	ctx := WithPrincipal(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
}
