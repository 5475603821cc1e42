package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"BMW B58":     "bmw b58",
		"BMW M20/M21": "bmw m20_m21",
		`S14\S38`:     "s14_s38",
		"../../etc":   ".._.._etc",
		"":            "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilePaths(t *testing.T) {
	tests := []struct {
		make, model string
		want        string
	}{
		{"BMW", "3 Series", "bmw/cars/3 series.json"},
		{"../../escaped", "pwn", ".._.._escaped/cars/pwn.json"},
		{"BMW", "../../../etc/passwd", "bmw/cars/.._.._.._etc_passwd.json"},
		{`..\mini`, "Cooper", ".._mini/cars/cooper.json"},
	}
	for _, tt := range tests {
		got, err := CarFilePath(CarPayload{Make: tt.make, Model: tt.model})
		if err != nil {
			t.Errorf("CarFilePath(%q, %q): %v", tt.make, tt.model, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CarFilePath(%q, %q) = %q, want %q", tt.make, tt.model, got, tt.want)
		}
		if strings.Count(got, "/") != 2 {
			t.Errorf("CarFilePath(%q, %q) = %q is not make/cars/file", tt.make, tt.model, got)
		}
	}
	got, err := EngineFilePath(EnginePayload{Model: "BMW N52/N53"})
	if err != nil || got != "bmw/engines/bmw n52_n53.json" {
		t.Errorf("EngineFilePath = %q, %v", got, err)
	}
}

func TestFilePathsRejectDotSegments(t *testing.T) {
	for _, p := range []CarPayload{
		{Make: "..", Model: "x"},
		{Make: ".", Model: "x"},
		{Make: "  ", Model: "x"},
		{Make: "BMW", Model: ".."},
	} {
		_, err := CarFilePath(p)
		if !errors.Is(err, ErrUnsafePath) || !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("CarFilePath(%q, %q) err = %v", p.Make, p.Model, err)
		}
	}
	if _, err := EngineFilePath(EnginePayload{Model: "."}); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("EngineFilePath(.) err = %v", err)
	}
}

func TestCleanImageURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"null", ""},
		{"https://img.example/b58.jpg", "https://img.example/b58.jpg"},
		{"//upload.wikimedia.org/b58.jpg", "https://upload.wikimedia.org/b58.jpg"},
		{`{"image_link": "//upload.wikimedia.org/n54.jpg"}`, "https://upload.wikimedia.org/n54.jpg"},
		{"[\"//cdn.example/a b.jpg\"]\n", "https://cdn.example/ab.jpg"},
	}
	for _, tt := range tests {
		if got := CleanImageURL(tt.in); got != tt.want {
			t.Errorf("CleanImageURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImageRefDecoding(t *testing.T) {
	tests := []struct {
		body string
		want ImageRef
	}{
		{`{"image_path":"//x/y.jpg"}`, "//x/y.jpg"},
		{`{"image_path":{"image_link":"//x/z.jpg"}}`, "//x/z.jpg"},
		{`{"image_path":null}`, ""},
		{`{"image_path":42}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var g GenerationModel
		if err := json.Unmarshal([]byte(tt.body), &g); err != nil {
			t.Fatalf("%s: %v", tt.body, err)
		}
		if g.ImagePath != tt.want {
			t.Errorf("%s: ImagePath = %q, want %q", tt.body, g.ImagePath, tt.want)
		}
	}
	if got := ImageRef("//x/y.jpg").URL(); got != "https://x/y.jpg" {
		t.Errorf("URL = %q", got)
	}
}

func TestNotesDecoding(t *testing.T) {
	tests := []struct {
		body string
		want Notes
	}{
		{`{"model":"m","notes":"twin turbo"}`, "twin turbo"},
		{`{"model":"m","notes":"null"}`, ""},
		{`{"model":"m","notes":null}`, ""},
		{`{"model":"m","notes":{"a": [1, 2]}}`, `{"a":[1,2]}`},
	}
	for _, tt := range tests {
		var p EnginePayload
		if err := json.Unmarshal([]byte(tt.body), &p); err != nil {
			t.Fatalf("%s: %v", tt.body, err)
		}
		if p.Notes != tt.want {
			t.Errorf("%s: Notes = %q, want %q", tt.body, p.Notes, tt.want)
		}
	}
}
