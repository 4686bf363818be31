// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package opds

import (
	"encoding/json"
	"io"
)

// SerializeEntry writes the JSON form of an entry, the shape the book
// database persists on disk for each book.
func SerializeEntry(w io.Writer, entry Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

// DeserializeEntry reads the JSON form of an entry.
func DeserializeEntry(r io.Reader) (Entry, error) {
	var entry Entry
	err := json.NewDecoder(r).Decode(&entry)
	return entry, err
}
