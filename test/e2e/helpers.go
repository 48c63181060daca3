package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/simfs/pkg/client"
	"github.com/marmos91/simfs/pkg/fault"
)

const notificationTimeout = 2 * time.Second

// runOnAllConfigs is a helper that runs a test on all configurations
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	configs := AllConfigurations()

	for _, config := range configs {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// User is one authorized connection to the server.
type User struct {
	t       *testing.T
	ctx     context.Context
	Client  *client.Client
	Session *client.Session
}

// Run executes line and returns the result or the error.
func (u *User) Run(line string) (*client.Result, error) {
	ctx, cancel := context.WithTimeout(u.ctx, 5*time.Second)
	defer cancel()
	return u.Client.Execute(ctx, u.Session, line)
}

// MustRun executes line and fails the test on error.
func (u *User) MustRun(line string) *client.Result {
	u.t.Helper()

	res, err := u.Run(line)
	if err != nil {
		u.t.Fatalf("%s: %q failed: %v", u.Session.UserName, line, err)
	}
	return res
}

// MustFail executes line and fails the test unless it fails with code.
func (u *User) MustFail(line string, code fault.Code) {
	u.t.Helper()

	_, err := u.Run(line)
	if err == nil {
		u.t.Fatalf("%s: %q succeeded, expected %s", u.Session.UserName, line, code)
	}
	if got := fault.CodeOf(err); got != code {
		u.t.Fatalf("%s: %q failed with %s (%v), expected %s", u.Session.UserName, line, got, err, code)
	}
}

// Print returns the namespace rendering seen by this user.
func (u *User) Print() string {
	u.t.Helper()
	return u.MustRun("PRINT").Message
}

// Disconnect closes the session and the connection.
func (u *User) Disconnect() {
	u.t.Helper()

	ctx, cancel := context.WithTimeout(u.ctx, 5*time.Second)
	defer cancel()

	if err := u.Client.Deauthorize(ctx, u.Session); err != nil {
		u.t.Fatalf("Failed to deauthorize %s: %v", u.Session.UserName, err)
	}
	_ = u.Client.Close()
}

// ExpectNotification waits for the next notification and checks it.
func (u *User) ExpectNotification(fromUser, commandLine string) {
	u.t.Helper()

	select {
	case n, ok := <-u.Client.Notifications():
		if !ok {
			u.t.Fatalf("%s: connection closed while waiting for notification", u.Session.UserName)
		}
		if n.UserName != fromUser || n.CommandLine != commandLine {
			u.t.Fatalf("%s: got notification %s: %q, expected %s: %q",
				u.Session.UserName, n.UserName, n.CommandLine, fromUser, commandLine)
		}
	case <-time.After(notificationTimeout):
		u.t.Fatalf("%s: no notification for %s: %q", u.Session.UserName, fromUser, commandLine)
	}
}

// ExpectNoNotification checks that nothing arrives within a short window.
func (u *User) ExpectNoNotification() {
	u.t.Helper()

	select {
	case n, ok := <-u.Client.Notifications():
		if ok {
			u.t.Fatalf("%s: unexpected notification %s: %q", u.Session.UserName, n.UserName, n.CommandLine)
		}
	case <-time.After(200 * time.Millisecond):
	}
}
