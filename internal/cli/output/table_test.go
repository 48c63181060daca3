package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	table := NewTableData("Seq", "User", "Command")
	table.AddRow("2", "bob", `MD C:\A`)
	table.AddRow("1", "alice", `MF C:\f.txt`)
	require.Len(t, table.Rows(), 2)

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, "COMMAND")
	assert.Contains(t, out, `MD C:\A`)
	assert.Contains(t, out, "alice")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{
		{"logging.level", "INFO"},
		{"adapters.console.port", "7070"},
	}))

	out := buf.String()
	assert.Contains(t, out, "logging.level")
	assert.Contains(t, out, "7070")
}
