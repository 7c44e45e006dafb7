// Package parsers bundles the parsers shipped with the framework. They
// register themselves under the "mwcp" source on import; the CLI imports
// this package for side effects.
package parsers

import (
	"fmt"
	"regexp"

	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
)

func init() {
	parser.MustRegister("mwcp", "urlscan", func(rep parser.Reporter) parser.Parser {
		return &URLScan{rep: rep}
	})
	parser.MustRegister("mwcp", "sample", func(rep parser.Reporter) parser.Parser {
		return &Sample{rep: rep}
	})
}

// urlPattern matches printable URLs embedded in a sample. Deliberately
// loose on scheme so tool-specific schemes are still caught.
var urlPattern = regexp.MustCompile(`[a-z][a-z0-9+.-]{1,15}://[\x21-\x7e]{4,200}`)

// URLScan reports every printable URL found in the input. It is the
// lowest-effort triage parser: no family knowledge, just carving.
type URLScan struct {
	rep parser.Reporter
}

// Parse implements parser.Parser.
func (p *URLScan) Parse(opts map[string]any) error {
	matches := urlPattern.FindAll(p.rep.InputBytes(), -1)
	if len(matches) == 0 {
		p.rep.LogDebug("no printable URLs found")
		return nil
	}
	for _, m := range matches {
		p.rep.Record("url", string(m))
	}
	p.rep.LogDebug("found %d printable URLs", len(matches))
	return nil
}

// Sample demonstrates the Reporter API end to end: metadata reporting,
// option handling, and output file registration. It is intended as a
// template for writing real family parsers.
type Sample struct {
	rep parser.Reporter
}

// Parse implements parser.Parser.
func (p *Sample) Parse(opts map[string]any) error {
	rep := p.rep

	rep.LogDebug("size of input file is %d bytes", len(rep.InputBytes()))

	rep.Record("url", "http://127.0.0.1")
	rep.Record("c2_url", "http://[fe80::20c:1234:5678:9abc]:80/badness")
	rep.Record("address", "bad.com")
	rep.Record("credential", []string{"admin", "pass"})
	rep.Record("port", []string{"1337", "tcp"})
	rep.Record("service", []string{"WinDefender", "Windows Defender", "", `C:\svc.exe`, ""})
	rep.Record("registrypathdata", []string{`HKLM\Software\Run\svc`, `C:\svc.exe`})
	rep.Record("other", map[string]string{"keylogger": "true"})

	if mutex, ok := opts["mutex"].(string); ok && mutex != "" {
		rep.Record("mutex", mutex)
	}

	rep.RegisterOutput([]byte("hello world"), "fooconfigtest.txt", "example output file")

	if path, err := rep.InputPath(); err == nil {
		rep.LogDebug("operating on input file %s", path)
	} else {
		return fmt.Errorf("failed to obtain input file path: %w", err)
	}
	return nil
}
