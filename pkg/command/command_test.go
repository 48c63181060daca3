package command

import (
	"testing"
	"time"

	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/namespace"
	"github.com/marmos91/simfs/pkg/notify"
	"github.com/marmos91/simfs/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		line          string
		caseSensitive bool
		wantCode      Code
		wantParams    []string
		wantErr       fault.Code
	}{
		{name: "ShortForm", line: `MD C:\A`, wantCode: MakeDirectory, wantParams: []string{`C:\A`}},
		{name: "LongFormMixedCase", line: `makedirectory C:\A`, wantCode: MakeDirectory, wantParams: []string{`C:\A`}},
		{name: "ExtraWhitespace", line: "  copy   a \t b  ", wantCode: CopyTree, wantParams: []string{"a", "b"}},
		{name: "NoParams", line: "PRINT", wantCode: PrintTree, wantParams: []string{}},
		{name: "CaseSensitiveExact", line: "DELTREE A", caseSensitive: true, wantCode: DeleteTree, wantParams: []string{"A"}},
		{name: "CaseSensitiveMismatch", line: "deltree A", caseSensitive: true, wantErr: fault.ErrProtocol},
		{name: "Unknown", line: "FORMAT C:", wantErr: fault.ErrProtocol},
		{name: "Integer", line: "1 C:", wantErr: fault.ErrProtocol},
		{name: "SignedInteger", line: "-3 C:", wantErr: fault.ErrProtocol},
		{name: "PlusInteger", line: "+7", wantErr: fault.ErrProtocol},
		{name: "Empty", line: "   ", wantErr: fault.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.line, tt.caseSensitive)
			if tt.wantErr != 0 {
				assert.True(t, fault.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, cmd.Code)
			assert.Equal(t, tt.wantParams, cmd.Params)
		})
	}
}

func TestCodes(t *testing.T) {
	codes := Codes()
	require.Len(t, codes, 11)
	for _, c := range codes {
		got, ok := ParseCode(c.Short(), true)
		require.True(t, ok)
		assert.Equal(t, c, got)

		got, ok = ParseCode(c.String(), false)
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
}

func TestCheckArity(t *testing.T) {
	for _, line := range []string{"MD", "CD", "RD", "DELTREE", "MF", "DEL", "LOCK", "UNLOCK", "COPY a", "MOVE a"} {
		cmd, err := Parse(line, false)
		require.NoError(t, err)
		assert.True(t, fault.Is(cmd.CheckArity(), fault.ErrProtocol), line)
	}

	cmd, err := Parse("PRINT", false)
	require.NoError(t, err)
	assert.NoError(t, cmd.CheckArity())
}

type recordingPublisher struct {
	recipients [][]string
	sent       []notify.Notification
}

func (p *recordingPublisher) Publish(recipients []string, n notify.Notification) {
	p.recipients = append(p.recipients, recipients)
	p.sent = append(p.sent, n)
}

type fixture struct {
	dispatcher *Dispatcher
	sessions   *session.Registry
	publisher  *recordingPublisher
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree, err := namespace.New("MyFS")
	require.NoError(t, err)

	f := &fixture{
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.sessions = session.NewRegistry(session.DefaultTimeout, session.WithClock(func() time.Time { return f.now }))
	f.dispatcher = NewDispatcher(namespace.NewOperations(tree), f.sessions, f.publisher, false)
	return f
}

func (f *fixture) login(t *testing.T, user string) session.Token {
	t.Helper()
	res, err := f.sessions.Authorize(user)
	require.NoError(t, err)
	return res.Token
}

func TestDispatcherExecute(t *testing.T) {
	f := newFixture(t)
	bob := f.login(t, "bob")
	f.login(t, "alice")

	t.Run("CreatesAndNotifiesOthers", func(t *testing.T) {
		resp, err := f.dispatcher.Execute("bob", bob, `MD C:\A`)
		require.NoError(t, err)
		assert.Equal(t, "bob", resp.UserName)
		assert.Equal(t, `MD C:\A`, resp.CommandLine)
		assert.Equal(t, `Directory C:\A created`, resp.Message)
		assert.Equal(t, "", resp.CurrentDirectory)

		require.Len(t, f.publisher.sent, 1)
		assert.Equal(t, []string{"alice"}, f.publisher.recipients[0])
		assert.Equal(t, notify.Notification{UserName: "bob", CommandLine: `MD C:\A`}, f.publisher.sent[0])
	})

	t.Run("ChangeDirectoryUpdatesSession", func(t *testing.T) {
		resp, err := f.dispatcher.Execute("bob", bob, `cd c:\a`)
		require.NoError(t, err)
		assert.Equal(t, `C:\A`, resp.CurrentDirectory)

		resp, err = f.dispatcher.Execute("bob", bob, "MF f.txt")
		require.NoError(t, err)
		assert.Equal(t, `File C:\A\f.txt created`, resp.Message)
		assert.Equal(t, `C:\A`, resp.CurrentDirectory)
	})

	t.Run("LockUsesSessionUser", func(t *testing.T) {
		_, err := f.dispatcher.Execute("bob", bob, `LOCK alice C:\A\f.txt`)
		assert.True(t, fault.Is(err, fault.ErrAuthFailure))

		resp, err := f.dispatcher.Execute("bob", bob, `LOCK bob C:\A\f.txt`)
		require.NoError(t, err)
		assert.Equal(t, `File C:\A\f.txt locked by bob`, resp.Message)

		resp, err = f.dispatcher.Execute("bob", bob, "PRINT")
		require.NoError(t, err)
		assert.Equal(t, "C:\n|_ A [DIR]\n|  |_ f.txt [FILE] [LOCKED BY: bob]", resp.Message)

		_, err = f.dispatcher.Execute("bob", bob, `UNLOCK C:\A\f.txt`)
		require.NoError(t, err)
	})

	t.Run("PrintRootFlag", func(t *testing.T) {
		resp, err := f.dispatcher.Execute("bob", bob, "PRINT root")
		require.NoError(t, err)
		assert.Equal(t, "MyFS\n|_ C:\n|  |_ A [DIR]\n|  |  |_ f.txt [FILE]", resp.Message)

		_, err = f.dispatcher.Execute("bob", bob, "PRINT everything")
		assert.True(t, fault.Is(err, fault.ErrValidation))
	})

	t.Run("FailuresCarryContext", func(t *testing.T) {
		sent := len(f.publisher.sent)

		_, err := f.dispatcher.Execute("bob", bob, "COPY A")
		var flt *fault.Fault
		require.ErrorAs(t, err, &flt)
		assert.Equal(t, "bob", flt.UserName)
		assert.Equal(t, "COPY A", flt.CommandLine)
		assert.Equal(t, fault.ErrProtocol, fault.CodeOf(err))

		_, err = f.dispatcher.Execute("bob", bob, `RD C:\Missing`)
		assert.True(t, fault.Is(err, fault.ErrStructural))

		assert.Len(t, f.publisher.sent, sent, "failures are not broadcast")
	})

	t.Run("RejectsBadToken", func(t *testing.T) {
		_, err := f.dispatcher.Execute("bob", make(session.Token, session.TokenLength), "PRINT")
		assert.True(t, fault.Is(err, fault.ErrAuthFailure))
	})
}

func TestExpiredSessionsAreNotNotified(t *testing.T) {
	f := newFixture(t)
	f.login(t, "carol")
	f.now = f.now.Add(session.DefaultTimeout + time.Second)
	bob := f.login(t, "bob")

	_, err := f.dispatcher.Execute("bob", bob, "MD X")
	require.NoError(t, err)
	require.Len(t, f.publisher.recipients, 1)
	assert.Empty(t, f.publisher.recipients[0])
}
