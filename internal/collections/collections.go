// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package collections

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embysync/internal/validation"
)

// UnnamedCollection names the collection built from a bare movies array.
const UnnamedCollection = "<Unnamed Collection>"

// ErrInvalidDocument is wrapped by every parse failure.
var ErrInvalidDocument = errors.New("invalid collections document")

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var (
	ResolutionUHD = Resolution{3840, 2160}
	ResolutionDVD = Resolution{720, 480}
	ResolutionSD  = Resolution{1920, 1080}
)

// Movie is one entry of a collection.
type Movie struct {
	Name       string     `json:"name"`
	Year       int        `json:"year,omitempty"`
	Rank       int        `json:"rank"`
	Resolution Resolution `json:"resolution"`
}

// Collection is a named, ordered list of movies.
type Collection struct {
	Name   string  `json:"name"`
	Movies []Movie `json:"movies"`
}

// Document is a parsed collections file.
type Document struct {
	Collections []Collection `json:"collections"`
}

// Len returns the number of movies across all collections.
func (d *Document) Len() int {
	n := 0
	for _, c := range d.Collections {
		n += len(c.Movies)
	}
	return n
}

// wireMovie is the on-disk movie. Pointers distinguish absent fields.
type wireMovie struct {
	Name   string `json:"name" validate:"required"`
	Year   int    `json:"year" validate:"gte=0"`
	Rank   *int   `json:"rank"`
	Width  *int   `json:"width" validate:"omitempty,gt=0"`
	Height *int   `json:"height" validate:"omitempty,gt=0"`
	Type   string `json:"type" validate:"omitempty,oneof=uhd dvd sd UHD DVD SD"`
}

type wireCollection struct {
	Name   string            `json:"name"`
	Movies []json.RawMessage `json:"movies"`
}

// Load parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collections file: %w", err)
	}
	doc, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a whole document from r.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read collections document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes a document. A "collections" array takes precedence
// over a bare "movies" array.
func ParseBytes(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalid("top level item should be an object")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, invalid("top level item should be an object: %v", err)
	}

	doc := &Document{}
	if raw, ok := top["collections"]; ok && isArray(raw) {
		var wire []json.RawMessage
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, invalid("collections: %v", err)
		}
		for i, rc := range wire {
			c, err := decodeCollection(rc)
			if err != nil {
				return nil, invalid("collection %d: %v", i, err)
			}
			doc.Collections = append(doc.Collections, c)
		}
		return doc, nil
	}
	if raw, ok := top["movies"]; ok && isArray(raw) {
		var wire []json.RawMessage
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, invalid("movies: %v", err)
		}
		movies, err := decodeMovies(wire)
		if err != nil {
			return nil, invalid("%v", err)
		}
		doc.Collections = []Collection{{Name: UnnamedCollection, Movies: movies}}
		return doc, nil
	}
	return nil, invalid("should contain an array called movies or collections")
}

func decodeCollection(raw json.RawMessage) (Collection, error) {
	if !isObject(raw) {
		return Collection{}, errors.New("should be an object")
	}
	var wc wireCollection
	if err := json.Unmarshal(raw, &wc); err != nil {
		return Collection{}, err
	}
	movies, err := decodeMovies(wc.Movies)
	if err != nil {
		return Collection{}, err
	}
	name := strings.TrimSpace(wc.Name)
	if name == "" {
		name = UnnamedCollection
	}
	return Collection{Name: name, Movies: movies}, nil
}

func decodeMovies(wire []json.RawMessage) ([]Movie, error) {
	movies := make([]Movie, 0, len(wire))
	for i, raw := range wire {
		m, err := decodeMovie(raw)
		if err != nil {
			return nil, fmt.Errorf("movie %d: %w", i, err)
		}
		movies = append(movies, m)
	}
	return movies, nil
}

func decodeMovie(raw json.RawMessage) (Movie, error) {
	if !isObject(raw) {
		return Movie{}, errors.New("should be an object")
	}
	var wm wireMovie
	if err := json.Unmarshal(raw, &wm); err != nil {
		return Movie{}, err
	}
	if err := validation.ValidateStruct(&wm); err != nil {
		return Movie{}, err
	}

	m := Movie{Name: strings.TrimSpace(wm.Name), Year: wm.Year, Rank: -1}
	if wm.Rank != nil {
		m.Rank = *wm.Rank
	}
	switch {
	case wm.Width != nil && wm.Height != nil:
		m.Resolution = Resolution{*wm.Width, *wm.Height}
	case wm.Width != nil || wm.Height != nil:
		return Movie{}, errors.New("width and height must be given together")
	default:
		m.Resolution = resolutionOf(wm.Type)
	}
	return m, nil
}

func resolutionOf(kind string) Resolution {
	switch strings.ToLower(kind) {
	case "uhd":
		return ResolutionUHD
	case "dvd":
		return ResolutionDVD
	default:
		return ResolutionSD
	}
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}
