package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/scratchpad-ai/agent-server/internal/agent"
	"github.com/scratchpad-ai/agent-server/internal/scratchpad"
)

const (
	snapshotStartMarker = "-- CURRENT SNAPSHOT DATA START --"
	snapshotEndMarker   = "-- CURRENT SNAPSHOT DATA END --"

	// defaultFieldDisplayLimit bounds how many characters of a single field
	// value make it into the snapshot block.
	defaultFieldDisplayLimit = 500
)

// FormatSnapshot renders the workbook snapshot block appended to the user
// prompt for tabular scopes. Each table lists its name, ws-id, and columns;
// preloaded records follow with per-field display truncation.
func FormatSnapshot(rc *agent.RunContext, fieldLimit int) string {
	if fieldLimit <= 0 {
		fieldLimit = defaultFieldDisplayLimit
	}

	var b strings.Builder
	b.WriteString(snapshotStartMarker)
	b.WriteString("\n")

	for i := range rc.Workbook.Tables {
		table := &rc.Workbook.Tables[i]
		writeTableBlock(&b, rc, table, fieldLimit)
	}

	b.WriteString(snapshotEndMarker)
	return b.String()
}

func writeTableBlock(b *strings.Builder, rc *agent.RunContext, table *scratchpad.SnapshotTable, fieldLimit int) {
	fmt.Fprintf(b, "\nTable: %s (wsId: %s)\n", table.Spec.Name, table.Spec.WsID)
	if filter := table.Context.ActiveRecordFilter; filter != "" {
		fmt.Fprintf(b, "Active filter: %s\n", filter)
	}

	names := make([]string, 0, len(table.Spec.Columns))
	for _, c := range table.Spec.Columns {
		names = append(names, c.Name)
	}
	fmt.Fprintf(b, "Columns: %s\n", strings.Join(names, ", "))

	if filtered := rc.FilteredCounts[table.Spec.WsID]; filtered > 0 {
		fmt.Fprintf(b, "Note: %d records are hidden by the active filter.\n", filtered)
	}

	records := rc.Preloaded[table.Spec.WsID]
	if len(records) == 0 {
		b.WriteString("Records: none loaded\n")
		return
	}

	fmt.Fprintf(b, "Records (%d loaded):\n", len(records))
	for i := range records {
		writeRecordLine(b, table, &records[i], fieldLimit)
	}
	if table.Context.PageSize > 0 && len(records) >= table.Context.PageSize {
		b.WriteString("Note: more records may exist beyond those shown; use fetch_additional_records to page through them.\n")
	}
}

func writeRecordLine(b *strings.Builder, table *scratchpad.SnapshotTable, record *scratchpad.Record, fieldLimit int) {
	fmt.Fprintf(b, "- %s:", record.ID.WsID)
	for _, col := range table.Spec.Columns {
		value := displayString(record, col.WsID)
		if value == "" {
			continue
		}
		fmt.Fprintf(b, " %s=%q", col.Name, truncateField(value, fieldLimit))
	}
	if record.Dirty {
		b.WriteString(" [has pending suggestions]")
	}
	b.WriteString("\n")
}

func truncateField(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	// Never cut inside a multi-byte rune.
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + fmt.Sprintf("… [truncated, %d chars total]", len(value))
}
