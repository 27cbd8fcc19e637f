package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
)

const (
	TypeFlightLog = "flightlog"
	TypeJSON      = "json"
	TypePDF       = "pdf"
	TypeSQLite    = "sqlite"
	TypeZstd      = "zstd"
	TypeOther     = "other"
)

var sqliteMagic = []byte("SQLite format 3\x00")

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		typ, err := Classify(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: typ})
	}
	return m, nil
}

// Classify sniffs the leading bytes of path before falling back to its
// extension. Flight logs are recognised by content regardless of name.
func Classify(path string) (string, error) {
	head, err := common.ReadHead(path, len(sqliteMagic))
	if err != nil {
		return "", err
	}
	switch {
	case autelfr.Sniff(head):
		return TypeFlightLog, nil
	case bytes.HasPrefix(head, sqliteMagic):
		return TypeSQLite, nil
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return TypePDF, nil
	case bytes.HasPrefix(head, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return TypeZstd, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".ndjson":
		return TypeJSON, nil
	case ".pdf":
		return TypePDF, nil
	case ".sqlite", ".db":
		return TypeSQLite, nil
	}
	return TypeOther, nil
}

// Count returns how many items have type typ.
func (m Manifest) Count(typ string) int {
	n := 0
	for _, it := range m.Items {
		if it.Type == typ {
			n++
		}
	}
	return n
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
