package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/gierrejunior/using-geocarbon-api/internal/common"
)

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.csv")
	content := " CAR ,Owner\nXYZ-1,Ana\nXYZ-2,Bruno\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{"CAR", "Owner"}) {
		t.Errorf("expected trimmed header, got %v", table.Columns)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if got := table.Records[1].Get("CAR"); got != "XYZ-2" {
		t.Errorf("expected XYZ-2, got %q", got)
	}
}

func TestLoadCSV_RaggedRowsArePadded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	if err := os.WriteFile(path, []byte("a,b,c\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.Records[0].Get("c"); got != "" {
		t.Errorf("expected empty pad value, got %q", got)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	for _, name := range []string{"legacy.xls", "notes.txt"} {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil {
			t.Fatalf("expected format error for %s", name)
		}
		if !errors.Is(err, common.ErrFileFormat) {
			t.Errorf("expected ErrFileFormat for %s, got %v", name, err)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(in, []byte("CAR\nA1\nA2\nA3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(in)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i, rec := range table.Records {
		if i != 1 {
			rec.Set("job_id", "id-"+rec.Get("CAR"))
		}
	}

	out := filepath.Join(dir, "out.csv")
	if err := table.Save(out); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != table.Len() {
		t.Errorf("row count changed: %d -> %d", table.Len(), reloaded.Len())
	}
	if !reflect.DeepEqual(reloaded.Columns, []string{"CAR", "job_id"}) {
		t.Errorf("expected union header, got %v", reloaded.Columns)
	}
	if got := reloaded.Records[1].Get("job_id"); got != "" {
		t.Errorf("unset cell must stay empty, got %q", got)
	}
	if got := reloaded.Records[2].Get("job_id"); got != "id-A3" {
		t.Errorf("expected id-A3, got %q", got)
	}
}

func TestSaveHeaderUnionOrder(t *testing.T) {
	first := NewRecord()
	first.Set("id", "1")
	first.Set("reason", "bad input")
	second := NewRecord()
	second.Set("id", "2")
	second.Set("status_code", "400")

	path := filepath.Join(t.TempDir(), "errors.csv")
	if err := Save(path, nil, []*Record{first, second}); err != nil {
		t.Fatalf("save: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"id", "reason", "status_code"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Errorf("expected first-occurrence order %v, got %v", want, table.Columns)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	dir := t.TempDir()

	rec := NewRecord()
	rec.Set("CAR", "XYZ-9")
	rec.Set("deforestation_2004_2023", "job-42")

	path := filepath.Join(dir, "cars.xlsx")
	if err := Save(path, []string{"CAR"}, []*Record{rec}); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("load xlsx: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", table.Len())
	}
	if got := table.Records[0].Get("deforestation_2004_2023"); got != "job-42" {
		t.Errorf("expected job-42, got %q", got)
	}
}

func TestLoadXLSX_WrittenByExcelize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "CAR")
	_ = f.SetCellValue("Sheet1", "A2", "PLOT-1")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := table.Records[0].Get("CAR"); got != "PLOT-1" {
		t.Errorf("expected PLOT-1, got %q", got)
	}
}

func TestRequireColumn(t *testing.T) {
	table := &Table{Columns: []string{"CAR"}}
	if err := table.RequireColumn("CAR"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := table.RequireColumn("job_id")
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	if !errors.Is(err, common.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestRecordOrder(t *testing.T) {
	rec := NewRecord()
	rec.Set("b", "1")
	rec.Set("a", "2")
	rec.Set("b", "3") // update must not duplicate the column
	if !reflect.DeepEqual(rec.Columns(), []string{"b", "a"}) {
		t.Errorf("expected first-set order, got %v", rec.Columns())
	}
	if rec.Get("b") != "3" {
		t.Errorf("expected updated value, got %q", rec.Get("b"))
	}
}
