package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/simfs/internal/cli/output"
	"github.com/marmos91/simfs/internal/cli/prompt"
	"github.com/marmos91/simfs/pkg/client"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/spf13/cobra"
)

var (
	consoleAddr string
	consoleUser string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open an interactive session on a simfs server",
	Long: `Connect to a simfs server, open a session and read commands from stdin.

Besides the namespace commands (MD, CD, RD, DELTREE, MF, DEL, LOCK, UNLOCK,
COPY, MOVE, PRINT) the console understands:
  HISTORY [n]   show the last n journaled commands (default 20)
  EXIT          close the session and quit

Changes made by other users are printed as they happen.

Examples:
  simfs console --user alice
  simfs console --addr 10.0.0.5:7070`,
	RunE: runConsoleCmd,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleAddr, "addr", "localhost:7070", "server address")
	consoleCmd.Flags().StringVarP(&consoleUser, "user", "u", "", "user name (prompted when empty)")
}

func runConsoleCmd(cmd *cobra.Command, args []string) error {
	userName := consoleUser
	if strings.TrimSpace(userName) == "" {
		var err error
		userName, err = prompt.UserName()
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, consoleAddr)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	return runConsole(ctx, c, userName, cmd.InOrStdin(), cmd.OutOrStdout())
}

// syncWriter serializes writes from the prompt loop and the notification
// printer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runConsole authorizes userName and runs commands read from in until EOF or
// EXIT, then deauthorizes.
func runConsole(ctx context.Context, c *client.Client, userName string, in io.Reader, out io.Writer) error {
	w := &syncWriter{w: out}

	s, err := c.Authorize(ctx, userName)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	fmt.Fprintf(w, "Connected as %s (%d user(s) online)\n", s.UserName, s.TotalUsers)

	go func() {
		for n := range c.Notifications() {
			fmt.Fprintf(w, "* %s: %s\n", n.UserName, n.CommandLine)
		}
	}()

	cwd := ""
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(w, "%s> ", promptLabel(cwd))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "EXIT", "QUIT":
			return closeConsole(ctx, c, s, w)

		case "HISTORY":
			if err := printHistory(ctx, c, s, fields[1:], w); err != nil {
				printError(w, err)
			}
			continue
		}

		res, err := c.Execute(ctx, s, line)
		if err != nil {
			printError(w, err)
			continue
		}
		cwd = res.CurrentDirectory
		if res.Message != "" {
			fmt.Fprintln(w, res.Message)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return closeConsole(ctx, c, s, w)
}

func closeConsole(ctx context.Context, c *client.Client, s *client.Session, w io.Writer) error {
	if err := c.Deauthorize(ctx, s); err != nil {
		return fmt.Errorf("deauthorize: %w", err)
	}
	fmt.Fprintln(w, "Bye")
	return nil
}

func promptLabel(cwd string) string {
	if cwd == "" {
		return "simfs"
	}
	return cwd
}

// printError prints domain faults as "<Code>: <message>" and anything else
// as a plain error.
func printError(w io.Writer, err error) {
	var f *fault.Fault
	if errors.As(err, &f) {
		fmt.Fprintf(w, "%s: %s\n", fault.CodeOf(err), f.Message())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func printHistory(ctx context.Context, c *client.Client, s *client.Session, args []string, w io.Writer) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("HISTORY takes a non-negative count, got %q", args[0])
		}
		limit = n
	}

	entries, err := c.History(ctx, s, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history")
		return nil
	}

	table := output.NewTableData("Seq", "Time", "User", "Command")
	for _, e := range entries {
		table.AddRow(
			strconv.FormatUint(e.Seq, 10),
			e.Time.Format("15:04:05"),
			e.UserName,
			e.CommandLine,
		)
	}
	return output.PrintTable(w, table)
}
