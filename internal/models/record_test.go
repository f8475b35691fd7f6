package models

import (
	"reflect"
	"testing"
)

func TestFileRecord_Description(t *testing.T) {
	tests := []struct {
		name   string
		record FileRecord
		want   string
	}{
		{"user only", FileRecord{UserDescription: "monthly invoice"}, "monthly invoice"},
		{"ai only", FileRecord{AIDescription: "generated summary"}, "generated summary"},
		{"ai richer wins", FileRecord{UserDescription: "short", AIDescription: "a much longer generated description"}, "a much longer generated description"},
		{"user richer wins", FileRecord{UserDescription: "a detailed hand-written description", AIDescription: "terse"}, "a detailed hand-written description"},
		{"both empty", FileRecord{}, ""},
		{"whitespace ignored for comparison", FileRecord{UserDescription: "   ", AIDescription: "real"}, "real"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Description(); got != tt.want {
				t.Errorf("Description() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileRecord_Tags(t *testing.T) {
	tests := []struct {
		name   string
		record FileRecord
		want   []string
	}{
		{"no tags", FileRecord{}, nil},
		{"user tags only", FileRecord{UserTags: "finance,invoice"}, []string{"finance", "invoice"}},
		{"merged and deduplicated", FileRecord{UserTags: "Finance, invoice", AITags: "finance,tax"}, []string{"Finance", "invoice", "tax"}},
		{"first casing preserved", FileRecord{UserTags: "Invoice", AITags: "invoice,INVOICE"}, []string{"Invoice"}},
		{"empty parts dropped", FileRecord{UserTags: "a,,b,"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Tags(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileRecord_Document(t *testing.T) {
	rec := FileRecord{
		ID:              7,
		OwnerID:         1,
		WorkspaceID:     3,
		Name:            "Invoice March",
		UserDescription: "march invoice",
		AITags:          "finance,invoice",
		Path:            "/docs/invoice_march.pdf",
		IsFavorite:      true,
		ImportanceScore: 80,
		Version:         42,
	}
	doc := rec.Document()
	if doc.RecordID != 7 || doc.OwnerID != 1 || doc.WorkspaceID != 3 {
		t.Errorf("identity fields not copied: %+v", doc)
	}
	if doc.Description != "march invoice" {
		t.Errorf("Description = %q", doc.Description)
	}
	if !reflect.DeepEqual(doc.Tags, []string{"finance", "invoice"}) {
		t.Errorf("Tags = %v", doc.Tags)
	}
	if !doc.IsFavorite || doc.ImportanceScore != 80 || doc.Version != 42 {
		t.Errorf("flags not copied: %+v", doc)
	}
}

func TestDocument_RichestText(t *testing.T) {
	withDesc := Document{Name: "report", Description: "quarterly report summary"}
	if got := withDesc.RichestText(); got != "quarterly report summary" {
		t.Errorf("RichestText() = %q, want description", got)
	}
	nameOnly := Document{Name: "report"}
	if got := nameOnly.RichestText(); got != "report" {
		t.Errorf("RichestText() = %q, want name", got)
	}
}
