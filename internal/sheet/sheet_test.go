package sheet

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoad(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"time", "temperature", "humidity"},
		{1, 20.5, 40},
		{2, 21, nil},
		{3, 21.5, 42},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "readings.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	fig, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(fig.Data) != 2 {
		t.Fatalf("got %d traces; want 2", len(fig.Data))
	}

	x := []any{int64(1), int64(2), int64(3)}
	temp := fig.Data[0]
	if temp["name"] != "temperature" || temp["type"] != "scatter" {
		t.Errorf("trace = %v", temp)
	}
	if !reflect.DeepEqual(temp["x"], x) {
		t.Errorf("x = %#v", temp["x"])
	}
	if want := []any{20.5, int64(21), 21.5}; !reflect.DeepEqual(temp["y"], want) {
		t.Errorf("temperature = %#v; want %#v", temp["y"], want)
	}
	if want := []any{int64(40), nil, int64(42)}; !reflect.DeepEqual(fig.Data[1]["y"], want) {
		t.Errorf("humidity = %#v; want %#v", fig.Data[1]["y"], want)
	}

	if _, err := Load(path, "NoSuchSheet"); err == nil {
		t.Error("expected error for missing sheet")
	}
}

func TestBuildEmpty(t *testing.T) {
	for _, rows := range [][][]string{nil, {{"only"}}} {
		if _, err := build("s", rows); !errors.Is(err, ErrEmpty) {
			t.Errorf("build(%v) = %v; want ErrEmpty", rows, err)
		}
	}
}

func TestBuildUnnamedColumn(t *testing.T) {
	fig, err := build("s", [][]string{{"x", ""}, {"a", "1"}, {"", "2"}})
	if err != nil {
		t.Fatal(err)
	}
	if fig.Data[0]["name"] != "B1" {
		t.Errorf("name = %v; want B1", fig.Data[0]["name"])
	}
	if !reflect.DeepEqual(fig.Data[0]["x"], []any{"a"}) {
		t.Errorf("x = %#v; rows without x should be skipped", fig.Data[0]["x"])
	}
}
