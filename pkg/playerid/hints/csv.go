// Package hints implements the CSV tracking-hint table (§6.1): a
// newline-delimited, header-driven CSV file the CSV hint pass consults
// for detections the anchor and gallery passes left unmatched, loaded
// the way the teacher's MOTChallenge loader in metrics.go parses a
// positional tracking CSV into an in-memory, frame-indexed table — but
// header-driven here since the hint file's columns are named and
// partially optional rather than fixed-position.
package hints

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// Table is an in-memory model.HintTable loaded from a CSV file, indexed
// by frame number for RowsForFrame's O(1) lookup.
type Table struct {
	byFrame map[int][]model.HintRow
}

// RowsForFrame returns every hint row recorded for frameNum, or nil if
// none.
func (t *Table) RowsForFrame(frameNum int) []model.HintRow {
	if t == nil {
		return nil
	}
	return t.byFrame[frameNum]
}

// column indices resolved once from the header row; -1 means absent.
type columns struct {
	frame, id                  int
	playerName, x1, y1, x2, y2 int
	team, jersey               int
}

// LoadCSV reads path and builds a Table. The header must include `frame`
// and at least one of `track_id`, `player_id`, `id` (when several are
// present, the first in that order is used); `player_name`, `x1`,
// `y1`, `x2`, `y2`, `team`, `jersey_number` are optional. A row missing a
// required column, or whose frame/id fields don't parse as integers, is
// skipped rather than failing the whole load — the same best-effort
// tolerance the anchor and gallery passes apply to a single bad
// detection.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open csv hint file: %v", model.ErrNotFound, err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", model.ErrSchemaInvalid, err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	table := &Table{byFrame: make(map[int][]model.HintRow)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv row: %v", model.ErrSchemaInvalid, err)
		}
		row, frameNum, ok := parseRow(record, cols)
		if !ok {
			continue
		}
		table.byFrame[frameNum] = append(table.byFrame[frameNum], row)
	}
	return table, nil
}

func resolveColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cols := columns{frame: -1, id: -1, playerName: -1, x1: -1, y1: -1, x2: -1, y2: -1, team: -1, jersey: -1}
	var ok bool
	if cols.frame, ok = idx["frame"]; !ok {
		return columns{}, fmt.Errorf("%w: csv hint file missing required column %q", model.ErrSchemaInvalid, "frame")
	}
	for _, name := range []string{"track_id", "player_id", "id"} {
		if i, found := idx[name]; found {
			cols.id = i
			break
		}
	}
	if cols.id == -1 {
		return columns{}, fmt.Errorf("%w: csv hint file missing one of track_id/player_id/id", model.ErrSchemaInvalid)
	}

	if i, found := idx["player_name"]; found {
		cols.playerName = i
	}
	if i, found := idx["x1"]; found {
		cols.x1 = i
	}
	if i, found := idx["y1"]; found {
		cols.y1 = i
	}
	if i, found := idx["x2"]; found {
		cols.x2 = i
	}
	if i, found := idx["y2"]; found {
		cols.y2 = i
	}
	if i, found := idx["team"]; found {
		cols.team = i
	}
	if i, found := idx["jersey_number"]; found {
		cols.jersey = i
	}
	return cols, nil
}

func parseRow(record []string, cols columns) (model.HintRow, int, bool) {
	if cols.frame >= len(record) || cols.id >= len(record) {
		return model.HintRow{}, 0, false
	}
	frameNum, err := strconv.Atoi(strings.TrimSpace(record[cols.frame]))
	if err != nil {
		return model.HintRow{}, 0, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(record[cols.id]))
	if err != nil {
		return model.HintRow{}, 0, false
	}

	row := model.HintRow{TrackID: &id}
	if cols.playerName >= 0 && cols.playerName < len(record) {
		row.PlayerName = strings.TrimSpace(record[cols.playerName])
	}
	if cols.team >= 0 && cols.team < len(record) {
		row.Team = strings.TrimSpace(record[cols.team])
	}
	if cols.jersey >= 0 && cols.jersey < len(record) {
		row.JerseyNum = strings.TrimSpace(record[cols.jersey])
	}

	if bbox, ok := parseBBox(record, cols); ok {
		row.BBox = &bbox
	}
	return row, frameNum, true
}

func parseBBox(record []string, cols columns) (model.BBox, bool) {
	if cols.x1 < 0 || cols.y1 < 0 || cols.x2 < 0 || cols.y2 < 0 {
		return model.BBox{}, false
	}
	if cols.x1 >= len(record) || cols.y1 >= len(record) || cols.x2 >= len(record) || cols.y2 >= len(record) {
		return model.BBox{}, false
	}
	x1, err1 := strconv.ParseFloat(strings.TrimSpace(record[cols.x1]), 64)
	y1, err2 := strconv.ParseFloat(strings.TrimSpace(record[cols.y1]), 64)
	x2, err3 := strconv.ParseFloat(strings.TrimSpace(record[cols.x2]), 64)
	y2, err4 := strconv.ParseFloat(strings.TrimSpace(record[cols.y2]), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return model.BBox{}, false
	}
	return model.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, true
}
