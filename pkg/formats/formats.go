// Package formats reads and writes the X-Plane scenery asset text formats:
// objects (.obj), line paint (.lin), draped polygons (.pol), facades (.fac)
// and autogen points (.agp).
//
// All formats share a three-line header and a line-oriented command body.
// Coordinates are converted between the file's Y-up convention and the
// internal Z-up convention here and nowhere else.
package formats

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Kind identifies an asset format.
type Kind int

// Asset kinds.
const (
	KindUnknown Kind = iota
	KindOBJ
	KindLIN
	KindPOL
	KindFAC
	KindAGP
)

func (k Kind) String() string {
	switch k {
	case KindOBJ:
		return "obj"
	case KindLIN:
		return "lin"
	case KindPOL:
		return "pol"
	case KindFAC:
		return "fac"
	case KindAGP:
		return "agp"
	default:
		return "unknown"
	}
}

// Header returns the version and keyword this package writes for k.
func (k Kind) Header() (version int, keyword string) {
	switch k {
	case KindOBJ:
		return 800, "OBJ"
	case KindLIN:
		return 850, "LINE_PAINT"
	case KindPOL:
		return 850, "DRAPED_POLYGON"
	case KindFAC:
		return 1000, "FACADE"
	case KindAGP:
		return 1000, "AG_POINT"
	}
	return 0, ""
}

// Detect returns the asset kind for a file name by extension.
func Detect(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return KindOBJ
	case ".lin":
		return KindLIN
	case ".pol":
		return KindPOL
	case ".fac":
		return KindFAC
	case ".agp":
		return KindAGP
	}
	return KindUnknown
}

// Asset is any decoded document.
type Asset interface {
	Kind() Kind
	// Encode serializes the document in the format's text form.
	Encode(opts WriteOptions) ([]byte, error)
}

// Decode reads and parses path according to its extension.
func Decode(path string, log *zap.Logger) (Asset, error) {
	kind := Detect(path)
	if kind == KindUnknown {
		return nil, xperr.Format(0, "%s: unrecognized asset extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	log = nopIfNil(log).With(zap.String("file", filepath.Base(path)))
	switch kind {
	case KindOBJ:
		return ParseOBJ(data, log)
	case KindLIN:
		return ParseLIN(data, log)
	case KindPOL:
		return ParsePOL(data, log)
	case KindFAC:
		return ParseFAC(data, log)
	default:
		return ParseAGP(data, log)
	}
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
