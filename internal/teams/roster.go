package teams

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Site offices keep crew rosters as spreadsheets; the loader reads the
// first sheet with team ids in column A and display names in column B. A
// header row ("id", "name"-ish) is skipped when present.

// LoadRoster reads a roster workbook from disk.
func LoadRoster(path string, logger *slog.Logger) ([]Team, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer closeWorkbook(f, logger)
	return rosterFromWorkbook(f)
}

// LoadRosterFromReader reads a roster workbook from a stream.
func LoadRosterFromReader(r io.Reader, logger *slog.Logger) ([]Team, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer closeWorkbook(f, logger)
	return rosterFromWorkbook(f)
}

func rosterFromWorkbook(f *excelize.File) ([]Team, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var out []Team
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if id == "" || name == "" {
			continue
		}
		if i == 0 && strings.EqualFold(id, "id") {
			continue
		}
		out = append(out, Team{ID: id, DisplayName: name})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("roster sheet %s contains no teams", sheet)
	}
	return out, nil
}

func closeWorkbook(f *excelize.File, logger *slog.Logger) {
	if err := f.Close(); err != nil && logger != nil {
		logger.Warn("teams.roster_close_error", "error", err)
	}
}
