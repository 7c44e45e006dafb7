package mwcp

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// OutputArtifact is one file a parser produced as analysis evidence. It
// exists in the registry even when disk writes are disabled or failed;
// Path is set only after a successful write.
type OutputArtifact struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MD5         string `json:"md5"`
	Size        int    `json:"size"`
	Path        string `json:"path,omitempty"`
	Data        []byte `json:"-"`
}

// RegisterOutput implements parser.Reporter. The payload is hashed and
// tracked under its basename; re-registering a name replaces the payload
// (last write wins) while the outputfile metadata keeps one tuple per
// distinct (name, description, hash) combination. Unless disabled, the
// payload is also written under the configured output directory with the
// configured filename prefix.
func (s *RunSession) RegisterOutput(payload []byte, logicalName, description string) {
	_, base := ntSplit(logicalName)
	if base == "" {
		s.LogDebug("Error registering output file because no filename was provided")
		return
	}

	sum := md5.Sum(payload)
	digest := hex.EncodeToString(sum[:])

	artifact := &OutputArtifact{
		Name:        base,
		Description: description,
		MD5:         digest,
		Size:        len(payload),
		Data:        payload,
	}
	if idx, exists := s.outputIndex[base]; exists {
		if s.outputs[idx].MD5 != digest {
			s.LogDebug("Output file %s re-registered with different contents, replacing", base)
		}
		s.outputs[idx] = artifact
	} else {
		s.outputIndex[base] = len(s.outputs)
		s.outputs = append(s.outputs, artifact)
	}

	tuple := []string{base, description, digest}
	if s.opts.EmbedOutputPayloads {
		tuple = append(tuple, base64.StdEncoding.EncodeToString(payload))
	}
	s.Record(FieldOutputFile, tuple)

	if s.opts.DisableOutputFiles {
		return
	}
	fullPath := filepath.Join(s.opts.OutputDir, s.prefixedName(base))
	if err := os.WriteFile(fullPath, payload, 0o644); err != nil {
		writeErr := fmt.Errorf("%w: %s: %v", ErrArtifactWrite, fullPath, err)
		s.LogDebug("Failed to write output file: %s, %s", fullPath, err)
		s.logger.Warn("Failed to write output artifact",
			slog.String("component", "session"), slog.String("path", fullPath), slog.Any("error", writeErr))
		return
	}
	artifact.Path = fullPath
	s.logger.Debug("Wrote output artifact",
		slog.String("component", "session"), slog.String("path", fullPath), slog.String("md5", digest))
}

// prefixedName applies the configured filename prefix policy.
func (s *RunSession) prefixedName(base string) string {
	switch s.opts.OutputPrefixMode {
	case PrefixInputHash:
		return fmt.Sprintf("%s_%s", s.inputMD5, base)
	case PrefixFixed:
		return fmt.Sprintf("%s_%s", s.opts.OutputPrefix, base)
	default:
		return base
	}
}

// ReportTempFile implements parser.Reporter. It loads a file the parser
// wrote (relative paths resolve against the scratch directory) and
// registers its contents as an output artifact.
func (s *RunSession) ReportTempFile(path, description string) {
	resolved, err := s.scratchJoin(path)
	if err != nil {
		s.LogDebug("Failed to resolve temp file %s: %s", path, err)
		return
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		s.LogDebug("Failed to read file: %s, %s", resolved, err)
		return
	}
	s.RegisterOutput(data, filepath.Base(resolved), description)
}
