package content

import (
	"strings"
	"testing"

	"ebc/book"
	"ebc/common"
)

func TestNew(t *testing.T) {
	meta := &book.Metadata{Title: "T", CoverImage: "cover.jpg"}

	a := New(meta, nil, common.ChannelStore, "/src", "/work")
	b := New(meta, nil, common.ChannelKDP, "/src", "/work")

	if !strings.HasPrefix(a.Identifier, "urn:uuid:") {
		t.Errorf("Identifier = %q, want urn:uuid prefix", a.Identifier)
	}
	if a.Identifier == b.Identifier {
		t.Error("every build must get a fresh identifier")
	}
	if a.Channel != common.ChannelStore || b.Channel != common.ChannelKDP {
		t.Error("channel not carried over")
	}
}

func TestContent_Document(t *testing.T) {
	c := &Content{
		Documents: []Document{
			{Chapter: book.Chapter{Name: "cover", Cover: true}},
			{Chapter: book.Chapter{Name: "chapter1"}},
		},
	}

	if c.Document("chapter1") == nil {
		t.Error("existing document not found")
	}
	if c.Document("chapter9") != nil {
		t.Error("lookup invented a document")
	}
}

func TestContent_CoverAssetName(t *testing.T) {
	tests := []struct {
		name     string
		meta     *book.Metadata
		expected string
	}{
		{"plain", &book.Metadata{CoverImage: "cover.jpg"}, "cover.jpg"},
		{"with path", &book.Metadata{CoverImage: "art/ebook cover.jpg"}, "ebook-cover.jpg"},
		{"windows path", &book.Metadata{CoverImage: `art\final (1).png`}, "final-1.png"},
		{"unset", &book.Metadata{}, ""},
		{"nil meta", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Content{Meta: tt.meta}
			if got := c.CoverAssetName(); got != tt.expected {
				t.Errorf("CoverAssetName() = %q, want %q", got, tt.expected)
			}
		})
	}
}
