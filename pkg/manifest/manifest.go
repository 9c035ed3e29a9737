// Package manifest defines the content manifest schema and the local and
// remote readers for it. The manifest is the go/no-go input for an update:
// versions are opaque tokens compared by string equality only.
package manifest

import (
	"bytes"
	"encoding/json"
)

// FileName is the manifest file name, both remotely and in the dist dir
const FileName = "content.json"

// Item content types
const (
	ItemImage     = "image"
	ItemVideo     = "video"
	ItemParagraph = "paragraph"
)

// Manifest describes a published content tree. Both schema shapes are
// supported: a flat books array and books nested under collections.
type Manifest struct {
	Version     string           `json:"version"`
	Books       []Book           `json:"books,omitempty"`
	Collections []Collection     `json:"collections,omitempty"`
	Files       []FileDescriptor `json:"files,omitempty"`
}

// Collection groups books in the nested schema shape
type Collection struct {
	Title string `json:"title,omitempty"`
	Books []Book `json:"books"`
}

// Book is a single content unit with an optional cover and content items
type Book struct {
	ID      BookID `json:"id"`
	Title   string `json:"title,omitempty"`
	Cover   string `json:"cover,omitempty"`
	Content []Item `json:"content,omitempty"`
}

// Item is one element of a book's content. Image and video items carry a
// src; paragraph items carry text and may carry a companion audio ref.
type Item struct {
	Type  string `json:"type"`
	Src   string `json:"src,omitempty"`
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// FileDescriptor is one entry of an explicit file list: either an absolute
// url or a path relative to the publisher base, plus the destination path.
type FileDescriptor struct {
	URL          string `json:"url,omitempty"`
	Path         string `json:"path,omitempty"`
	RelativePath string `json:"relativePath,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// BookID tolerates both JSON strings and numbers, since publishers emit both
type BookID string

// UnmarshalJSON implements json.Unmarshaler
func (id *BookID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BookID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = BookID(n.String())
	return nil
}

func (id BookID) String() string {
	return string(id)
}

// AllBooks returns every book regardless of schema shape, flat list first
func (m *Manifest) AllBooks() []Book {
	books := make([]Book, 0, len(m.Books))
	books = append(books, m.Books...)
	for _, c := range m.Collections {
		books = append(books, c.Books...)
	}
	return books
}

// Parse decodes manifest JSON
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
