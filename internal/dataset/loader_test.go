package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	return path
}

func TestLoader_LoadCSV(t *testing.T) {
	path := writeCSV(t, "age,sex,income,label\n30,1,10.5,1\n40,,20.0,0\n50,0,30.25,1\n")

	loader, err := OpenLoader()
	if err != nil {
		t.Fatalf("failed to open loader: %v", err)
	}
	defer loader.Close()

	data, err := loader.Load(context.Background(), Source{Path: path, Label: "label"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if data.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", data.Len())
	}
	if len(data.Features) != 3 || data.Features[2] != "income" {
		t.Errorf("unexpected features %v", data.Features)
	}
	if data.Y[0] != 1 || data.Y[1] != 0 {
		t.Errorf("unexpected labels %v", data.Y)
	}
	if !math.IsNaN(data.X[1][1]) {
		t.Errorf("expected missing sex to be NaN, got %v", data.X[1][1])
	}
	if data.X[2][2] != 30.25 {
		t.Errorf("expected income 30.25, got %v", data.X[2][2])
	}
}

func TestLoader_SelectFeatures(t *testing.T) {
	path := writeCSV(t, "a,b,c,y\n1,2,3,0\n4,5,6,1\n")

	loader, err := OpenLoader()
	if err != nil {
		t.Fatalf("failed to open loader: %v", err)
	}
	defer loader.Close()

	data, err := loader.Load(context.Background(), Source{Path: path, Label: "y", Features: []string{"c", "a"}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if data.X[1][0] != 6 || data.X[1][1] != 4 {
		t.Errorf("unexpected row %v", data.X[1])
	}

	if _, err := loader.Load(context.Background(), Source{Path: path, Label: "missing"}); err == nil {
		t.Error("expected error for missing label column")
	}
	if _, err := loader.Load(context.Background(), Source{Path: path, Features: []string{"z"}}); err == nil {
		t.Error("expected error for missing feature column")
	}
}

func TestEncoder_Categories(t *testing.T) {
	dict := NewDictionary()
	enc := &encoder{dict: dict, columns: []string{"color"}}

	values := []any{"red", "blue", "red", "2.5", nil, int64(3), true}
	var got []float64
	for _, v := range values {
		got = append(got, enc.value(0, v))
	}

	if got[0] != 0 || got[1] != 1 || got[2] != 0 {
		t.Errorf("unexpected category codes %v", got[:3])
	}
	if got[3] != 2.5 {
		t.Errorf("expected numeric text to parse, got %v", got[3])
	}
	if !math.IsNaN(got[4]) {
		t.Errorf("expected nil to be NaN, got %v", got[4])
	}
	if got[5] != 3 || got[6] != 1 {
		t.Errorf("unexpected numeric conversion %v", got[5:])
	}
	if labels := dict.Labels("color"); len(labels) != 2 || labels[1] != "blue" {
		t.Errorf("unexpected labels %v", labels)
	}
	if !enc.used(0) {
		t.Error("expected column to be marked as coded")
	}
}

func TestLoader_PredictionsShareLabelCodes(t *testing.T) {
	truth := writeCSV(t, "age,income\n30,high\n40,low\n50,low\n60,high\n")
	preds := writeCSV(t, "prediction\nlow\nlow\nlow\nhigh\n")

	loader, err := OpenLoader()
	if err != nil {
		t.Fatalf("failed to open loader: %v", err)
	}
	defer loader.Close()

	data, err := loader.Load(context.Background(), Source{Path: truth, Label: "income"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	out, err := loader.Load(context.Background(), Source{Path: preds, Label: "prediction", Codebook: "income"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hits := 0
	for i := range data.Y {
		if data.Y[i] == out.Y[i] {
			hits++
		}
	}
	if acc := float64(hits) / float64(len(data.Y)); acc != 0.75 {
		t.Errorf("expected accuracy 0.75 with shared codes, got %v (truth %v, predictions %v)", acc, data.Y, out.Y)
	}
	if got := data.Categories["income"]; len(got) != 2 || got[0] != "high" {
		t.Errorf("unexpected label categories %v", got)
	}
	if c, ok := loader.Dictionary().Lookup("income", "low"); !ok || c != 1 {
		t.Errorf("expected low to be code 1, got %v, %v", c, ok)
	}
	if _, ok := loader.Dictionary().Lookup("prediction", "low"); ok {
		t.Error("predictions must not get their own codebook")
	}
}

func TestLoader_SplitsShareCodes(t *testing.T) {
	train := writeCSV(t, "sex,y\nmale,good\nfemale,bad\n")
	test := writeCSV(t, "sex,y\nfemale,bad\nmale,good\nother,bad\n")

	loader, err := OpenLoader()
	if err != nil {
		t.Fatalf("failed to open loader: %v", err)
	}
	defer loader.Close()

	ds, err := loader.LoadAll(context.Background(), map[Split]Source{
		SplitTrain: {Path: train, Label: "y"},
		SplitTest:  {Path: test, Label: "y"},
	})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	tr, _ := ds.Get(SplitTrain)
	te, _ := ds.Get(SplitTest)
	if tr.X[0][0] != te.X[1][0] || tr.X[1][0] != te.X[0][0] {
		t.Errorf("expected identical sex codes across splits, got %v and %v", tr.X, te.X)
	}
	if tr.Y[0] != te.Y[1] || tr.Y[1] != te.Y[0] {
		t.Errorf("expected identical label codes across splits, got %v and %v", tr.Y, te.Y)
	}
	if te.X[2][0] != 2 {
		t.Errorf("expected new category to get the next code, got %v", te.X[2][0])
	}
	if got := te.Categories["sex"]; len(got) != 3 || got[2] != "other" {
		t.Errorf("unexpected categories %v", got)
	}
}

func TestDictionary(t *testing.T) {
	d := NewDictionary()
	if _, ok := d.Lookup("sex", "male"); ok {
		t.Fatal("expected empty dictionary")
	}
	if d.Code("sex", "male") != 0 || d.Code("sex", "female") != 1 || d.Code("sex", "male") != 0 {
		t.Error("expected stable codes in order of first appearance")
	}
	if d.Code("race", "white") != 0 {
		t.Error("expected columns to have independent codes")
	}
	if d.Columns() != 2 {
		t.Errorf("expected 2 columns, got %d", d.Columns())
	}
}

func TestScanExpr(t *testing.T) {
	tests := map[string]string{
		"data.parquet": "read_parquet('data.parquet')",
		"rows.jsonl":   "read_json_auto('rows.jsonl')",
		"it's.csv":     "read_csv_auto('it''s.csv')",
	}
	for path, want := range tests {
		if got := scanExpr(path); got != want {
			t.Errorf("scanExpr(%q) = %q, want %q", path, got, want)
		}
	}
}
