package hints

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hints.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadCSVFullColumns(t *testing.T) {
	path := writeCSV(t, "frame,track_id,player_name,x1,y1,x2,y2,team,jersey_number\n"+
		"10,7,Messi,0.1,0.2,0.3,0.4,Argentina,10\n"+
		"10,8,Ronaldo,0.5,0.2,0.7,0.4,Portugal,7\n"+
		"11,7,Messi,0.12,0.2,0.32,0.4,Argentina,10\n")

	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	rows := table.RowsForFrame(10)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for frame 10, got %d", len(rows))
	}
	if rows[0].PlayerName != "Messi" || rows[0].Team != "Argentina" || rows[0].JerseyNum != "10" {
		t.Fatalf("unexpected row 0: %+v", rows[0])
	}
	if rows[0].BBox == nil || rows[0].BBox.X1 != 0.1 || rows[0].BBox.Y2 != 0.4 {
		t.Fatalf("unexpected bbox on row 0: %+v", rows[0].BBox)
	}
	if rows[0].TrackID == nil || *rows[0].TrackID != 7 {
		t.Fatalf("unexpected track id on row 0: %+v", rows[0].TrackID)
	}

	if got := len(table.RowsForFrame(11)); got != 1 {
		t.Fatalf("expected 1 row for frame 11, got %d", got)
	}
	if got := len(table.RowsForFrame(999)); got != 0 {
		t.Fatalf("expected 0 rows for an absent frame, got %d", got)
	}
}

func TestLoadCSVMinimalColumns(t *testing.T) {
	path := writeCSV(t, "frame,id\n5,1\n5,2\n")

	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	rows := table.RowsForFrame(5)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].BBox != nil {
		t.Fatalf("expected nil bbox when x1/y1/x2/y2 columns are absent, got %+v", rows[0].BBox)
	}
	if rows[0].PlayerName != "" {
		t.Fatalf("expected empty player name when column absent, got %q", rows[0].PlayerName)
	}
}

func TestLoadCSVAcceptsPlayerIDColumn(t *testing.T) {
	path := writeCSV(t, "frame,player_id\n1,42\n")

	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(table.RowsForFrame(1)) != 1 {
		t.Fatalf("expected 1 row")
	}
}

func TestLoadCSVMissingRequiredColumnFails(t *testing.T) {
	path := writeCSV(t, "frame,player_name\n1,Messi\n")

	_, err := LoadCSV(path)
	if !errors.Is(err, model.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}

func TestLoadCSVSkipsUnparseableRows(t *testing.T) {
	path := writeCSV(t, "frame,id\n1,2\nnot-a-frame,3\n2,not-an-id\n3,4\n")

	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(table.RowsForFrame(1)) != 1 {
		t.Fatalf("expected frame 1 to keep its valid row")
	}
	if len(table.RowsForFrame(2)) != 0 {
		t.Fatalf("expected frame 2's unparseable id row to be skipped")
	}
	if len(table.RowsForFrame(3)) != 1 {
		t.Fatalf("expected frame 3 to keep its valid row")
	}
}

func TestLoadCSVMissingFileReturnsNotFound(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNilTableRowsForFrame(t *testing.T) {
	var table *Table
	if got := table.RowsForFrame(1); got != nil {
		t.Fatalf("expected nil rows from a nil table, got %v", got)
	}
}
