package config

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// Version is stamped into generated containers so datasets record the
// pipeline that produced them.
const Version = "procscene 0.3.0"

const (
	DefaultChunkSize  = 1000
	DefaultDepthScale = 0.1
)

var (
	seed        int64 = 42
	resWidth          = 512
	resHeight         = 512
	depthScale        = DefaultDepthScale
	chunkSize         = DefaultChunkSize
)

func SetSeed(s int64) {
	seed = s
}

func Seed() int64 {
	return seed
}

func SetResolution(w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.Errorf("Invalid resolution %dx%d", w, h)
	}
	resWidth, resHeight = w, h
	return nil
}

func Resolution() (w, h int) {
	return resWidth, resHeight
}

func SetDepthScale(s float64) error {
	if s <= 0 {
		return errors.Errorf("Invalid depth scale %v", s)
	}
	depthScale = s
	return nil
}

func DepthScale() float64 {
	return depthScale
}

func SetChunkSize(n int) error {
	if n <= 0 {
		return errors.Errorf("Invalid chunk size %v", n)
	}
	chunkSize = n
	return nil
}

func ChunkSize() int {
	return chunkSize
}

// Some asset packs carry object and material names in single-byte legacy
// encodings. Loaders route non-UTF8 name bytes through this charmap.
var currentCharMap *charmap.Charmap = charmap.Windows1252

func SetEncoding(name string) error {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentCharMap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func DecodeLegacyName(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := currentCharMap.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
