// Copyright (C) 2024 Sofia-Go Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package cube

import (
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
)

const (
	blockSize     = 2880
	lineSize      = 80
	linesPerBlock = blockSize / lineSize
	// maxHeaderBlocks bounds how far ParseHeader will read looking for an
	// END card before giving up; a well-formed header needs only a
	// handful of blocks.
	maxHeaderBlocks = 4096
)

// Header is the textual metadata block of a cube: an ordered list of
// 80-byte FITS-style cards terminated by an END card, keyed by
// case-insensitive 8-character names.
type Header struct {
	// lines holds only the cards that carry information plus the
	// terminating END card — no trailing blank filler. Bytes() computes
	// the padding needed to round the serialized size up to the next
	// multiple of 2880 at write time, which is also what makes Delete's
	// "shrink if the trailing block becomes empty" behaviour fall out for
	// free: there is no filler to shrink, it is simply never materialized.
	lines []string

	// Warn receives soft warning messages (missing-key lookups). If nil,
	// warnings go to the standard log package, matching this module's
	// ambient logging convention.
	Warn func(format string, args ...any)
}

// NewHeader returns a minimal valid header containing only the END card.
func NewHeader() *Header {
	return &Header{lines: []string{padLine("END")}}
}

func (h *Header) warn(format string, args ...any) {
	if h.Warn != nil {
		h.Warn(format, args...)
		return
	}
	log.Printf("cube: "+format, args...)
}

func padLine(s string) string {
	if len(s) >= lineSize {
		return s[:lineSize]
	}
	return s + strings.Repeat(" ", lineSize-len(s))
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ParseHeader reads 2880-byte blocks from r until an END card is found. It
// returns the parsed header and the number of bytes consumed (always a
// positive multiple of 2880).
func ParseHeader(r io.Reader) (*Header, int64, error) {
	h := &Header{}
	var consumed int64
	block := make([]byte, blockSize)
	for i := 0; i < maxHeaderBlocks; i++ {
		n, err := io.ReadFull(r, block)
		if err != nil {
			return nil, 0, fmt.Errorf("cube: reading header block %d: %w", i, err)
		}
		consumed += int64(n)
		foundEnd := false
		for off := 0; off < blockSize; off += lineSize {
			line := string(block[off : off+lineSize])
			h.lines = append(h.lines, line)
			if normalizeKey(line[:8]) == "END" {
				foundEnd = true
				break
			}
		}
		if foundEnd {
			return h, consumed, nil
		}
	}
	return nil, 0, fmt.Errorf("cube: no END card found within %d blocks", maxHeaderBlocks)
}

// Bytes serializes the header to its on-disk form, space-padded to the
// next multiple of 2880 bytes.
func (h *Header) Bytes() []byte {
	total := len(h.lines) * lineSize
	padded := ((total + blockSize - 1) / blockSize) * blockSize
	if padded == 0 {
		padded = blockSize
	}
	out := make([]byte, 0, padded)
	for _, l := range h.lines {
		out = append(out, l...)
	}
	for len(out) < padded {
		out = append(out, ' ')
	}
	return out
}

// Size returns the serialized header size in bytes (a multiple of 2880).
func (h *Header) Size() int {
	return len(h.Bytes())
}

func (h *Header) indexOf(key string) int {
	key = normalizeKey(key)
	for i, l := range h.lines {
		if normalizeKey(l[:8]) == key {
			return i
		}
	}
	return -1
}

func (h *Header) endIndex() int {
	for i, l := range h.lines {
		if normalizeKey(l[:8]) == "END" {
			return i
		}
	}
	// Should not happen for any header constructed via NewHeader or
	// ParseHeader, both of which guarantee an END card.
	h.lines = append(h.lines, padLine("END"))
	return len(h.lines) - 1
}

// Check returns the 1-based card position of key, or 0 if key is absent.
func (h *Header) Check(key string) int {
	i := h.indexOf(key)
	if i < 0 {
		return 0
	}
	return i + 1
}

func valueField(line string) string {
	if len(line) < 10 || line[8] != '=' {
		return ""
	}
	return line[10:]
}

func extractValueText(raw string) string {
	trimmed := strings.TrimLeft(raw, " ")
	if strings.HasPrefix(trimmed, "'") {
		rest := trimmed[1:]
		var sb strings.Builder
		for i := 0; i < len(rest); i++ {
			if rest[i] == '\'' {
				if i+1 < len(rest) && rest[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				break
			}
			sb.WriteByte(rest[i])
		}
		return strings.TrimRight(sb.String(), " ")
	}
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// GetRaw returns the undecoded value text for key (quotes stripped for
// string values, inline comment stripped), or "" with a logged warning if
// key is absent.
func (h *Header) GetRaw(key string) string {
	i := h.indexOf(key)
	if i < 0 {
		h.warn("missing header key %q", normalizeKey(key))
		return ""
	}
	return extractValueText(valueField(h.lines[i]))
}

// GetStr returns the string value of key, or "" if absent.
func (h *Header) GetStr(key string) string {
	return h.GetRaw(key)
}

// GetInt returns the integer value of key, or 0 if absent or unparsable.
func (h *Header) GetInt(key string) int64 {
	i := h.indexOf(key)
	if i < 0 {
		h.warn("missing header key %q", normalizeKey(key))
		return 0
	}
	text := extractValueText(valueField(h.lines[i]))
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		// Tolerate an integer stored in fixed-point float notation
		// ("100.0"), which some FITS writers emit for NAXISn-like keys.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if ferr != nil {
			h.warn("header key %q value %q is not an integer", normalizeKey(key), text)
			return 0
		}
		return int64(f)
	}
	return v
}

// GetFlt returns the floating-point value of key, or NaN if absent or
// unparsable.
func (h *Header) GetFlt(key string) float64 {
	i := h.indexOf(key)
	if i < 0 {
		h.warn("missing header key %q", normalizeKey(key))
		return math.NaN()
	}
	text := strings.TrimSpace(extractValueText(valueField(h.lines[i])))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		h.warn("header key %q value %q is not a float", normalizeKey(key), text)
		return math.NaN()
	}
	return v
}

// GetBool returns the logical value of key, or false if absent.
func (h *Header) GetBool(key string) bool {
	i := h.indexOf(key)
	if i < 0 {
		h.warn("missing header key %q", normalizeKey(key))
		return false
	}
	text := strings.TrimSpace(extractValueText(valueField(h.lines[i])))
	return text == "T" || text == "t"
}

func (h *Header) setLine(key, line string) {
	if i := h.indexOf(key); i >= 0 {
		h.lines[i] = line
		return
	}
	end := h.endIndex()
	h.lines = append(h.lines, "")
	copy(h.lines[end+1:], h.lines[end:])
	h.lines[end] = line
}

func formatNumericLine(key, text string) string {
	field := fmt.Sprintf("%20s", text)
	return padLine(fmt.Sprintf("%-8s= %s", normalizeKey(key), field))
}

// PutRaw writes a preformatted 70-character value field verbatim (columns
// 10-79), for callers that need exact control over formatting.
func (h *Header) PutRaw(key, rawValueField string) {
	field := rawValueField
	if len(field) < 70 {
		field += strings.Repeat(" ", 70-len(field))
	}
	h.setLine(key, padLine(fmt.Sprintf("%-8s= %s", normalizeKey(key), field)))
}

// PutInt writes an integer-valued card, fixed-format right-justified in
// the 20-character value field.
func (h *Header) PutInt(key string, v int64) {
	h.setLine(key, formatNumericLine(key, strconv.FormatInt(v, 10)))
}

// PutFlt writes a floating-point card.
func (h *Header) PutFlt(key string, v float64) {
	h.setLine(key, formatNumericLine(key, strconv.FormatFloat(v, 'G', -1, 64)))
}

// PutBool writes a logical card ('T' or 'F').
func (h *Header) PutBool(key string, v bool) {
	text := "F"
	if v {
		text = "T"
	}
	h.setLine(key, formatNumericLine(key, text))
}

// PutStr writes a string card, single-quoted with embedded quotes doubled.
func (h *Header) PutStr(key, v string) {
	quoted := "'" + strings.ReplaceAll(v, "'", "''") + "'"
	field := quoted
	if len(field) < 20 {
		field += strings.Repeat(" ", 20-len(field))
	}
	h.setLine(key, padLine(fmt.Sprintf("%-8s= %s", normalizeKey(key), field)))
}

// Delete removes key from the header, if present. Since trailing filler is
// never persisted (only computed at serialization time in Bytes), removing
// the last substantive card before a now-empty final block shrinks the
// header automatically the next time it is serialized.
func (h *Header) Delete(key string) {
	i := h.indexOf(key)
	if i < 0 {
		return
	}
	h.lines = append(h.lines[:i], h.lines[i+1:]...)
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	out := &Header{lines: make([]string, len(h.lines)), Warn: h.Warn}
	copy(out.lines, h.lines)
	return out
}

// CopyKeysFrom copies the named keys from src into h, if present in src.
// Used to build a new cube's header that shares a subset of another
// cube's WCS entries (spec 4.E step 3: the S+C mask shares CTYPE*,
// CRVAL*, CRPIX*, CDELT*, EPOCH with the data cube it was derived from).
func (h *Header) CopyKeysFrom(src *Header, keys ...string) {
	for _, k := range keys {
		i := src.indexOf(k)
		if i < 0 {
			continue
		}
		h.setLine(k, src.lines[i])
	}
}

// WCSKeys lists the WCS-related header keys a derived mask inherits from
// its data cube, per spec 4.E step 3.
func WCSKeys(naxis int) []string {
	keys := []string{"EPOCH"}
	for axis := 1; axis <= naxis; axis++ {
		suffix := strconv.Itoa(axis)
		keys = append(keys, "CTYPE"+suffix, "CRVAL"+suffix, "CRPIX"+suffix, "CDELT"+suffix)
	}
	return keys
}
