// Package inspect provides lightweight introspection of input samples.
// It sniffs the executable format from magic bytes and, for PE files,
// walks the headers for facts the report can carry (compile timestamp,
// section names). Everything here is advisory: a truncated or hostile
// header yields an error the caller logs and moves past.
package inspect

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Format identifies the recognized executable container of a sample.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatPE      Format = "pe"
	FormatELF     Format = "elf"
	FormatMachO   Format = "macho"
)

// ErrMalformed indicates the sample advertised a format its contents do
// not actually carry (for example an MZ stub with no valid PE header).
var ErrMalformed = errors.New("malformed executable header")

// Facts holds what introspection learned about a sample. Zero values mean
// "not determined", never "zero".
type Facts struct {
	Format      Format
	CompileTime time.Time // PE TimeDateStamp; zero when absent or implausible
	Machine     string    // PE machine name, e.g. "amd64"
	Sections    []string  // PE section names in file order
}

// Sniffer inspects raw sample bytes.
type Sniffer struct{}

// New creates a Sniffer.
func New() *Sniffer {
	return &Sniffer{}
}

var (
	elfMagic   = []byte{0x7F, 'E', 'L', 'F'}
	machoMagic = [][]byte{
		{0xFE, 0xED, 0xFA, 0xCE}, {0xFE, 0xED, 0xFA, 0xCF},
		{0xCE, 0xFA, 0xED, 0xFE}, {0xCF, 0xFA, 0xED, 0xFE},
	}
)

// SniffFormat classifies the sample container from its magic bytes alone.
func SniffFormat(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	if data[0] == 'M' && data[1] == 'Z' {
		return FormatPE
	}
	if bytes.HasPrefix(data, elfMagic) {
		return FormatELF
	}
	for _, magic := range machoMagic {
		if bytes.HasPrefix(data, magic) {
			return FormatMachO
		}
	}
	return FormatUnknown
}

// Inspect classifies the sample and, for PE files, extracts header facts.
func (s *Sniffer) Inspect(data []byte) (Facts, error) {
	facts := Facts{Format: SniffFormat(data)}
	if facts.Format != FormatPE {
		return facts, nil
	}

	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return facts, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	facts.Machine = machineName(f.Machine)
	for _, sec := range f.Sections {
		facts.Sections = append(facts.Sections, sec.Name)
	}
	if ts := f.FileHeader.TimeDateStamp; plausibleTimestamp(ts) {
		facts.CompileTime = time.Unix(int64(ts), 0).UTC()
	}
	return facts, nil
}

// plausibleTimestamp filters the obvious forgeries: zero stamps, stamps
// before PE existed, and stamps decades in the future.
func plausibleTimestamp(ts uint32) bool {
	const earliest = 694224000 // 1992-01-01
	if ts < earliest {
		return false
	}
	return time.Unix(int64(ts), 0).Before(time.Now().AddDate(10, 0, 0))
}

func machineName(m uint16) string {
	switch m {
	case pe.IMAGE_FILE_MACHINE_I386:
		return "386"
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "amd64"
	case pe.IMAGE_FILE_MACHINE_ARM:
		return "arm"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	default:
		return fmt.Sprintf("0x%04x", m)
	}
}

// peOffsetSanity rejects MZ stubs whose e_lfanew points outside the file,
// a cheap pre-check before handing data to debug/pe.
func peOffsetSanity(data []byte) bool {
	if len(data) < 0x40 {
		return false
	}
	off := binary.LittleEndian.Uint32(data[0x3C:0x40])
	return int64(off)+4 <= int64(len(data))
}

// HasPEHeader reports whether data is plausibly a full PE image rather
// than a bare MZ stub.
func HasPEHeader(data []byte) bool {
	if SniffFormat(data) != FormatPE || !peOffsetSanity(data) {
		return false
	}
	off := binary.LittleEndian.Uint32(data[0x3C:0x40])
	return bytes.Equal(data[off:off+4], []byte{'P', 'E', 0, 0})
}
