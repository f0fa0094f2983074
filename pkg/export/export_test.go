package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementDataset() Dataset {
	return Dataset{
		Headers: []string{"Date", "Type", "Points"},
		Rows: []map[string]string{
			{"Date": "2026-10-01", "Type": "credit", "Points": "25"},
			{"Date": "2026-10-02", "Type": "request_rejected", "Points": "0"},
		},
		Summary: []string{"Balance: 25"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(statementDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Type,Points", lines[0])
	assert.Equal(t, "2026-10-01,credit,25", lines[1])
	assert.Equal(t, "Balance: 25", lines[3])
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Description", "Points"},
		Rows: []map[string]string{
			{"Description": "=HYPERLINK(\"http://x\")", "Points": "-5"},
			{"Description": "@SUM(A1)", "Points": "+3"},
		},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"'=HYPERLINK(""http://x"")",-5`, lines[1])
	assert.Equal(t, "'@SUM(A1),+3", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.Widths = map[string]float64{"Points": 20}
	out, err := exporter.Render(statementDataset(), "Activity statement")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	long := strings.Repeat("x", 100)
	assert.Len(t, truncate(long, 18), 10)
}
