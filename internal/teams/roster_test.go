package teams

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())
	return &buf
}

func TestLoadRosterFromReader(t *testing.T) {
	buf := workbookBytes(t, [][]string{
		{"id", "name"},
		{"t-scaffold", "Scaffolding Crew"},
		{"t-electric", "Electrical"},
		{"", "no id, skipped"},
		{"t-lonely"},
		{" t-steel ", " Steel Fixing "},
	})

	roster, err := LoadRosterFromReader(buf, nil)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, Team{ID: "t-scaffold", DisplayName: "Scaffolding Crew"}, roster[0])
	assert.Equal(t, Team{ID: "t-electric", DisplayName: "Electrical"}, roster[1])
	assert.Equal(t, Team{ID: "t-steel", DisplayName: "Steel Fixing"}, roster[2], "cells are trimmed")
}

func TestLoadRosterNoHeaderRow(t *testing.T) {
	buf := workbookBytes(t, [][]string{
		{"t-scaffold", "Scaffolding Crew"},
	})
	roster, err := LoadRosterFromReader(buf, nil)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "t-scaffold", roster[0].ID)
}

func TestLoadRosterEmptySheet(t *testing.T) {
	buf := workbookBytes(t, [][]string{{"id", "name"}})
	_, err := LoadRosterFromReader(buf, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no teams")
}

func TestLoadRosterNotAWorkbook(t *testing.T) {
	_, err := LoadRosterFromReader(strings.NewReader("id,name\nt-1,Crew\n"), nil)
	assert.Error(t, err)
}

func TestLoadRosterFromFile(t *testing.T) {
	buf := workbookBytes(t, [][]string{
		{"id", "name"},
		{"t-rebar", "Rebar"},
	})
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	roster, err := LoadRoster(path, nil)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Rebar", roster[0].DisplayName)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	assert.Error(t, err)
}
