package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{ErrValidation, "ValidationError"},
		{ErrStructural, "StructuralViolation"},
		{ErrLockConflict, "LockConflict"},
		{ErrAuthFailure, "AuthFailure"},
		{ErrProtocol, "ProtocolFault"},
		{Code(0), "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.String())
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "path not found", New(ErrStructural, "path not found").Error())
	assert.Equal(t, `path not found: C:\A`, WithPath(ErrStructural, "path not found", `C:\A`).Error())
	assert.Equal(t, "need 2 parameters", Newf(ErrProtocol, "need %d parameters", 2).Error())
}

func TestCodeOfFollowsChain(t *testing.T) {
	base := WithPath(ErrLockConflict, "file is locked by bob", "f.txt")
	wrapped := Wrap("alice", `DEL C:\f.txt`, base)
	outer := fmt.Errorf("execute: %w", wrapped)

	assert.Equal(t, ErrLockConflict, CodeOf(outer))
	assert.True(t, Is(outer, ErrLockConflict))
	assert.False(t, Is(outer, ErrStructural))
	assert.False(t, Is(nil, ErrLockConflict))
	assert.Equal(t, Code(0), CodeOf(errors.New("plain")))

	var f *Fault
	assert.True(t, errors.As(outer, &f))
	assert.Equal(t, "alice", f.UserName)
	assert.Equal(t, "file is locked by bob: f.txt", f.Message())
}

func TestFaultError(t *testing.T) {
	withLine := Wrap("alice", "MD", New(ErrProtocol, "insufficient parameters"))
	assert.Equal(t, `alice: "MD": insufficient parameters`, withLine.Error())

	noLine := Wrap("bob", "", New(ErrAuthFailure, "invalid session token"))
	assert.Equal(t, "bob: invalid session token", noLine.Error())

	assert.NoError(t, Wrap("bob", "PRINT", nil))
}
