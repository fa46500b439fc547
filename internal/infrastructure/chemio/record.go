// Package chemio reads and writes chemical structure libraries as streams of
// records: SMILES tables, SDF, MOL2 (including DOCK score headers) and PDB,
// optionally gzip- or zstd-compressed, from local files, stdin/stdout or
// S3-compatible object storage.
//
// Readers split a library into records without interpreting them; Parse
// turns one record into a molecule.  A record that fails to parse therefore
// never stops the stream.
package chemio

import (
	"path"
	"strings"

	"github.com/turtacn/molfilter/pkg/errors"
)

// Format is a structure file format.
type Format string

const (
	FormatSMILES Format = "smiles"
	FormatSDF    Format = "sdf"
	FormatMOL2   Format = "mol2"
	FormatPDB    Format = "pdb"
)

// Compression is a stream compression codec.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Suffix returns the file suffix of the codec, including the dot.
func (c Compression) Suffix() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	}
	return ""
}

// Record property keys.
const (
	PropSMILES      = "smiles"       // SMILES column of a table row
	PropName        = "Name"         // DOCK header name
	PropTotalEnergy = "Total Energy" // DOCK header score
)

// Record is one structure of a library, kept as the exact bytes read.
type Record struct {
	// Index is the 0-based position of the record in its source.
	Index int
	// Name is the record title: SMILES name column, molfile/MOL2 title line
	// or PDB identifier.
	Name string
	// Raw holds the record text as read, including any header block that
	// belongs to it.  Writers copy it unmodified.
	Raw    []byte
	Format Format
	// Props holds per-record key/values: SDF data items, DOCK header
	// fields, the SMILES column of a table row.
	Props map[string]string
}

// Prop returns a property value, or "" when unset.
func (r *Record) Prop(key string) string {
	if r.Props == nil {
		return ""
	}
	return r.Props[key]
}

var formatSuffixes = map[string]Format{
	".smi":      FormatSMILES,
	".smiles":   FormatSMILES,
	".ism":      FormatSMILES,
	".can":      FormatSMILES,
	".csv":      FormatSMILES,
	".tsv":      FormatSMILES,
	".txt":      FormatSMILES,
	".cxsmiles": FormatSMILES,
	".sdf":      FormatSDF,
	".sd":       FormatSDF,
	".mol":      FormatSDF,
	".mol2":     FormatMOL2,
	".ml2":      FormatMOL2,
	".pdb":      FormatPDB,
	".ent":      FormatPDB,
}

// SplitCompression strips a compression suffix from name.
func SplitCompression(name string) (string, Compression) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return name[:len(name)-3], CompressionGzip
	case strings.HasSuffix(lower, ".zst"):
		return name[:len(name)-4], CompressionZstd
	}
	return name, CompressionNone
}

// DetectFormat infers the structure format and compression of a path or URI
// from its suffixes, e.g. "poses.mol2.gz" is MOL2 with gzip.
func DetectFormat(name string) (Format, Compression, error) {
	base, comp := SplitCompression(name)
	ext := strings.ToLower(path.Ext(base))
	if f, ok := formatSuffixes[ext]; ok {
		return f, comp, nil
	}
	return "", comp, errors.New(errors.CodeFormatUnsupported, "cannot infer structure format").
		WithDetailf("path %q", name)
}

// ParseFormat accepts a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "smi", "smiles", "ism", "csv", "tsv", "txt":
		return FormatSMILES, nil
	case "sdf", "sd", "mol":
		return FormatSDF, nil
	case "mol2", "ml2":
		return FormatMOL2, nil
	case "pdb", "ent":
		return FormatPDB, nil
	}
	return "", errors.New(errors.CodeFormatUnsupported, "unknown structure format").WithDetailf("format %q", s)
}

// tableDelimiter returns the column delimiter implied by a SMILES table name:
// ',' for .csv, '\t' for .tsv, 0 for whitespace-separated files.
func tableDelimiter(name string) byte {
	base, _ := SplitCompression(name)
	switch strings.ToLower(path.Ext(base)) {
	case ".csv":
		return ','
	case ".tsv":
		return '\t'
	}
	return 0
}
