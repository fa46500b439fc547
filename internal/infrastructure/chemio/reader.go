package chemio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/turtacn/molfilter/pkg/errors"
)

// OpenOptions configures Open.
type OpenOptions struct {
	// Format overrides suffix-based format detection.
	Format Format
	// Store serves s3:// URIs.  Nil disables them.
	Store ObjectStore
}

// Reader is a lazy, single-pass stream of records.
type Reader struct {
	uri         string
	rc          io.ReadCloser
	br          *bufio.Reader
	format      Format
	compression Compression
	next        int
	eof         bool

	// SMILES tables
	delim     byte
	header    []byte
	smilesCol int
	nameCol   int

	// MOL2: a DOCK header block read ahead of the next molecule
	pending []byte
	// lookahead line already read but not yet consumed
	held []byte
}

// Open opens a structure library for streaming.
func Open(ctx context.Context, uri string, opts OpenOptions) (*Reader, error) {
	format := opts.Format
	if format == "" {
		if uri == StdStream {
			return nil, errors.New(errors.CodeFormatUnsupported, "format must be given when reading stdin")
		}
		f, _, err := DetectFormat(uri)
		if err != nil {
			return nil, err
		}
		format = f
	}
	rc, comp, err := OpenDecompressed(ctx, uri, opts.Store)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		uri:         uri,
		rc:          rc,
		br:          bufio.NewReaderSize(rc, 256*1024),
		format:      format,
		compression: comp,
		nameCol:     1,
	}
	if format == FormatSMILES {
		r.delim = tableDelimiter(uri)
		if err := r.readTableHeader(); err != nil {
			_ = rc.Close()
			return nil, err
		}
	}
	return r, nil
}

// Format returns the structure format being read.
func (r *Reader) Format() Format { return r.format }

// Compression returns the codec the input was stored with.
func (r *Reader) Compression() Compression { return r.compression }

// Header returns the header line of a SMILES table, or nil.
func (r *Reader) Header() []byte { return r.header }

// Close releases the underlying stream.
func (r *Reader) Close() error { return r.rc.Close() }

// Next returns the next record, or io.EOF after the last one.  Any other
// error is a run-level read failure.
func (r *Reader) Next() (Record, error) {
	if r.eof && r.held == nil && r.pending == nil {
		return Record{}, io.EOF
	}
	var (
		rec Record
		err error
		ok  bool
	)
	switch r.format {
	case FormatSMILES:
		rec, ok, err = r.nextTableRow()
	case FormatSDF:
		rec, ok, err = r.nextDelimited(isSDFTerminator)
	case FormatPDB:
		rec, ok, err = r.nextDelimited(isPDBTerminator)
	case FormatMOL2:
		rec, ok, err = r.nextMOL2()
	default:
		return Record{}, errors.New(errors.CodeFormatUnsupported, "unsupported format").WithDetailf("format %q", r.format)
	}
	if err != nil {
		return Record{}, errors.Wrap(err, errors.CodeInputUnreadable, "read failed").WithDetailf("path %q record %d", r.uri, r.next)
	}
	if !ok {
		return Record{}, io.EOF
	}
	rec.Index = r.next
	rec.Format = r.format
	r.next++
	return rec, nil
}

// readLine returns the next line including its terminator.  At end of input
// it returns nil.
func (r *Reader) readLine() ([]byte, error) {
	if r.held != nil {
		line := r.held
		r.held = nil
		return line, nil
	}
	if r.eof {
		return nil, nil
	}
	line, err := r.br.ReadBytes('\n')
	if err == io.EOF {
		r.eof = true
		if len(line) == 0 {
			return nil, nil
		}
		return line, nil
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (r *Reader) unread(line []byte) { r.held = line }

func trimEOL(line []byte) string {
	return strings.TrimRight(string(line), "\r\n")
}

// ─────────────────────────────────────────────────────────────────────────────
// SMILES tables
// ─────────────────────────────────────────────────────────────────────────────

var smilesHeaderNames = map[string]bool{"smiles": true, "smi": true, "canonical_smiles": true, "isosmiles": true}
var nameHeaderNames = map[string]bool{"name": true, "id": true, "title": true, "molecule": true, "compound_id": true, "zinc_id": true}

func (r *Reader) splitRow(line string) []string {
	if r.delim == 0 {
		return strings.Fields(line)
	}
	fields := strings.Split(line, string(r.delim))
	for i := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(fields[i]), `"`)
	}
	return fields
}

// readTableHeader detects a header row: a line starting with '#', or one
// whose columns include a SMILES column name.  The header is kept so that
// writers can reproduce it.
func (r *Reader) readTableHeader() error {
	for {
		line, err := r.readLine()
		if err != nil {
			return errors.Wrap(err, errors.CodeInputUnreadable, "read failed").WithDetailf("path %q", r.uri)
		}
		if line == nil {
			return nil
		}
		text := strings.TrimSpace(trimEOL(line))
		if text == "" {
			continue
		}
		fields := r.splitRow(strings.TrimPrefix(text, "#"))
		isHeader := strings.HasPrefix(text, "#")
		col := -1
		for i, f := range fields {
			if smilesHeaderNames[strings.ToLower(f)] {
				isHeader = true
				col = i
				break
			}
		}
		if !isHeader {
			r.unread(line)
			return nil
		}
		r.header = line
		if col >= 0 {
			r.smilesCol = col
			r.nameCol = -1
			for i, f := range fields {
				if i != col && nameHeaderNames[strings.ToLower(f)] {
					r.nameCol = i
					break
				}
			}
			if r.nameCol < 0 {
				r.nameCol = 1
				if col == 1 {
					r.nameCol = 0
				}
			}
		}
		return nil
	}
}

func (r *Reader) nextTableRow() (Record, bool, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return Record{}, false, err
		}
		if line == nil {
			return Record{}, false, nil
		}
		text := strings.TrimSpace(trimEOL(line))
		if text == "" {
			continue
		}
		fields := r.splitRow(text)
		rec := Record{Raw: line, Props: map[string]string{}}
		if r.smilesCol < len(fields) {
			rec.Props[PropSMILES] = fields[r.smilesCol]
		}
		if r.nameCol >= 0 && r.nameCol < len(fields) {
			rec.Name = fields[r.nameCol]
		}
		return rec, true, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SDF and PDB: records end at a terminator line
// ─────────────────────────────────────────────────────────────────────────────

func isSDFTerminator(line string) bool { return strings.HasPrefix(line, "$$$$") }

func isPDBTerminator(line string) bool {
	return line == "END" || strings.HasPrefix(line, "END ") || strings.HasPrefix(line, "ENDMDL")
}

func (r *Reader) nextDelimited(terminator func(string) bool) (Record, bool, error) {
	var buf bytes.Buffer
	blank := true
	for {
		line, err := r.readLine()
		if err != nil {
			return Record{}, false, err
		}
		if line == nil {
			break
		}
		text := trimEOL(line)
		if blank && strings.TrimSpace(text) == "" {
			continue
		}
		if terminator(text) {
			if blank {
				// stray terminator, e.g. END after ENDMDL
				continue
			}
			buf.Write(line)
			break
		}
		blank = false
		buf.Write(line)
	}
	if blank {
		return Record{}, false, nil
	}
	raw := buf.Bytes()
	rec := Record{Raw: raw, Props: map[string]string{}}
	switch r.format {
	case FormatSDF:
		rec.Name = sdfTitle(raw)
		sdfDataItems(raw, rec.Props)
	case FormatPDB:
		rec.Name = pdbIdentifier(raw)
	}
	return rec, true, nil
}

func sdfTitle(raw []byte) string {
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	return strings.TrimSpace(strings.TrimRight(string(line), "\r"))
}

// sdfDataItems collects "> <KEY>" data items following the molfile block.
func sdfDataItems(raw []byte, props map[string]string) {
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	inData := false
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if strings.HasPrefix(l, "M  END") {
			inData = true
			continue
		}
		if !inData || !strings.HasPrefix(l, ">") {
			continue
		}
		open := strings.IndexByte(l, '<')
		closing := strings.LastIndexByte(l, '>')
		if open < 0 || closing <= open {
			continue
		}
		key := l[open+1 : closing]
		var vals []string
		for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" && !strings.HasPrefix(lines[i+1], "$$$$") {
			i++
			vals = append(vals, lines[i])
		}
		props[key] = strings.Join(vals, "\n")
	}
}

func pdbIdentifier(raw []byte) string {
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "HEADER") && len(line) >= 66 {
			return strings.TrimSpace(line[62:66])
		}
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			break
		}
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// MOL2 with DOCK headers
// ─────────────────────────────────────────────────────────────────────────────

const (
	mol2MoleculeTag = "@<TRIPOS>MOLECULE"
	mol2AtomTag     = "@<TRIPOS>ATOM"
	dockHeaderTag   = "##########"
)

// nextMOL2 returns one molecule block.  A run of DOCK "##########" lines
// preceding a molecule belongs to that molecule's record, and so does a run
// written inside the MOLECULE block ahead of its atoms, as ViewDock does.  A
// trailing header with no molecule after it becomes an atom-less record that
// fails to parse.
func (r *Reader) nextMOL2() (Record, bool, error) {
	var buf bytes.Buffer
	header := r.pending
	r.pending = nil
	buf.Write(header)
	inMolecule, sawAtoms := false, false
	for {
		line, err := r.readLine()
		if err != nil {
			return Record{}, false, err
		}
		if line == nil {
			break
		}
		text := trimEOL(line)
		switch {
		case strings.HasPrefix(text, dockHeaderTag):
			if sawAtoms {
				// header of the following record
				r.unread(line)
				return r.finishMOL2(buf.Bytes(), header), true, nil
			}
			header = append(header, line...)
			buf.Write(line)
			continue
		case strings.HasPrefix(text, mol2MoleculeTag):
			if inMolecule {
				r.unread(line)
				return r.finishMOL2(buf.Bytes(), header), true, nil
			}
			inMolecule = true
		case inMolecule && strings.HasPrefix(text, mol2AtomTag):
			sawAtoms = true
		case !inMolecule && strings.TrimSpace(text) == "":
			continue
		}
		buf.Write(line)
	}
	if !inMolecule && len(bytes.TrimSpace(buf.Bytes())) == 0 {
		return Record{}, false, nil
	}
	return r.finishMOL2(buf.Bytes(), header), true, nil
}

func (r *Reader) finishMOL2(raw, header []byte) Record {
	rec := Record{Raw: append([]byte(nil), raw...), Props: dockHeaderProps(header)}
	rec.Name = mol2Title(raw)
	if rec.Name == "" {
		rec.Name = rec.Props[PropName]
	}
	return rec
}

// dockHeaderProps parses "##########   Total Energy:   -35.2" lines.
func dockHeaderProps(header []byte) map[string]string {
	props := map[string]string{}
	for _, line := range strings.Split(string(header), "\n") {
		text := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		key, val, ok := strings.Cut(text, ":")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return props
}

func mol2Title(raw []byte) string {
	lines := strings.Split(string(raw), "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, mol2MoleculeTag) && i+1 < len(lines) {
			fields := strings.Fields(lines[i+1])
			if len(fields) > 0 {
				return fields[0]
			}
			return ""
		}
	}
	return ""
}
