package validation_test

import (
	"errors"
	"strings"
	"testing"

	"assetmirror/internal/validation"
	"assetmirror/pkg/domain"
)

func TestValidateNewAsset(t *testing.T) {
	valid := domain.NewAssetInput{Identifier: "LAP-001", Name: "Laptop", Type: domain.TypeDevice}

	cases := []struct {
		name      string
		mutate    func(*domain.NewAssetInput)
		wantField string
	}{
		{"valid", func(*domain.NewAssetInput) {}, ""},
		{"missing identifier", func(in *domain.NewAssetInput) { in.Identifier = "  " }, "identifier"},
		{"lowercase identifier", func(in *domain.NewAssetInput) { in.Identifier = "lap-001" }, "identifier"},
		{"identifier too long", func(in *domain.NewAssetInput) { in.Identifier = strings.Repeat("A", 65) }, "identifier"},
		{"missing name", func(in *domain.NewAssetInput) { in.Name = "" }, "name"},
		{"unknown type", func(in *domain.NewAssetInput) { in.Type = "vehicle" }, "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			err := validation.ValidateNewAsset(input)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid input, got %v", err)
				}
				return
			}
			var ve domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.wantField {
				t.Fatalf("expected ValidationError on %s, got %v", tc.wantField, err)
			}
		})
	}
}

func TestValidateUploadFile(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		size     int64
		ok       bool
	}{
		{"csv ok", "assets.csv", 1024, true},
		{"xlsx ok", "Assets.XLSX", 2048, true},
		{"wrong extension", "assets.pdf", 1024, false},
		{"empty file", "assets.csv", 0, false},
		{"oversized", "assets.csv", validation.MaxUploadSize + 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validation.ValidateUploadFile(tc.filename, tc.size)
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok {
				var ve domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			}
		})
	}
}
