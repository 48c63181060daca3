package e2e

import (
	"strings"
	"testing"

	"github.com/marmos91/simfs/pkg/fault"
)

// TestLockBlocksDeleteTree walks the lock lifecycle: a locked file keeps its
// directory from being deleted until it is unlocked.
func TestLockBlocksDeleteTree(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		bob := tc.Connect("bob")

		bob.MustRun(`MD C:\A`)
		bob.MustRun(`MF C:\A\f.txt`)
		bob.MustRun(`LOCK bob C:\A\f.txt`)

		if out := bob.Print(); !strings.Contains(out, "f.txt [FILE] [LOCKED BY: bob]") {
			t.Fatalf("Expected locked file in tree, got:\n%s", out)
		}

		bob.MustFail(`DELTREE C:\A`, fault.ErrLockConflict)
		bob.MustRun(`UNLOCK bob C:\A\f.txt`)
		bob.MustRun(`DELTREE C:\A`)

		if out := bob.Print(); strings.Contains(out, "A [DIR]") {
			t.Fatalf("Expected A to be gone, got:\n%s", out)
		}
	})
}

// TestLocksFromSeveralUsers checks that every holder must unlock before the
// file can be deleted.
func TestLocksFromSeveralUsers(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		alice := tc.Connect("alice")
		bob := tc.Connect("bob")

		alice.MustRun(`MF C:\shared.txt`)
		bob.ExpectNotification("alice", `MF C:\shared.txt`)

		alice.MustRun(`LOCK C:\shared.txt`)
		bob.MustRun(`LOCK C:\shared.txt`)
		alice.MustFail(`LOCK C:\shared.txt`, fault.ErrLockConflict)

		if out := alice.Print(); !strings.Contains(out, "[LOCKED BY: alice, bob]") {
			t.Fatalf("Expected both lockers, got:\n%s", out)
		}

		alice.MustFail(`UNLOCK bob C:\shared.txt`, fault.ErrAuthFailure)
		alice.MustRun(`UNLOCK C:\shared.txt`)
		alice.MustFail(`DEL C:\shared.txt`, fault.ErrLockConflict)
		bob.MustRun(`UNLOCK C:\shared.txt`)
		alice.MustRun(`DEL C:\shared.txt`)
	})
}

// TestCopyAndMove exercises subtree copies and moves across volumes.
func TestCopyAndMove(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		carol := tc.Connect("carol")

		carol.MustRun(`MD C:\Src`)
		carol.MustRun(`MD C:\Src\Sub`)
		carol.MustRun(`MF C:\Src\Sub\a.txt`)
		carol.MustRun(`MD C:\Dst`)

		carol.MustRun(`COPY C:\Src C:\Dst`)
		carol.MustRun(`MOVE C:\Src\Sub C:\Dst`)

		carol.MustFail(`MOVE C:\Dst C:\Dst\Src`, fault.ErrStructural)

		out := carol.Print()
		for _, want := range []string{"Dst [DIR]", "Src [DIR]", "Sub [DIR]", "a.txt [FILE]"} {
			if !strings.Contains(out, want) {
				t.Fatalf("Expected %q in tree, got:\n%s", want, out)
			}
		}
		if strings.Count(out, "Sub [DIR]") != 2 {
			t.Fatalf("Expected one copied and one moved Sub, got:\n%s", out)
		}
	})
}

// TestCurrentDirectory checks that CD is per session and that relative paths
// resolve against it.
func TestCurrentDirectory(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		alice := tc.Connect("alice")
		bob := tc.Connect("bob")

		alice.MustRun(`MD C:\Home`)
		res := alice.MustRun(`CD C:\Home`)
		if res.CurrentDirectory != `C:\Home` {
			t.Fatalf("Expected current directory C:\\Home, got %q", res.CurrentDirectory)
		}

		res = alice.MustRun(`MF notes.txt`)
		if res.Message != `File C:\Home\notes.txt created` {
			t.Fatalf("Unexpected message %q", res.Message)
		}

		// bob never changed directory, so relative paths start at the first
		// volume.
		res = bob.MustRun(`MF notes.txt`)
		if res.Message != `File C:\notes.txt created` {
			t.Fatalf("Unexpected message %q", res.Message)
		}
		if res.CurrentDirectory != "" {
			t.Fatalf("Expected bob's current directory to stay unset, got %q", res.CurrentDirectory)
		}
	})
}

// TestInvalidCommands checks the protocol and validation faults.
func TestInvalidCommands(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		dave := tc.Connect("dave")

		dave.MustFail(`FROB C:\x`, fault.ErrProtocol)
		dave.MustFail(`MD`, fault.ErrProtocol)
		dave.MustFail(`RD C:\missing`, fault.ErrStructural)
		dave.MustFail(`MD C:\bad|name`, fault.ErrValidation)

		dave.MustRun(`MF C:\f.txt`)
		dave.MustFail(`MD C:\f.txt\d`, fault.ErrStructural)
	})
}
