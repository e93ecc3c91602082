package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/diffable/internal/snapshot"
)

// Error code constants, shared by every command.
const (
	ErrCodeGeneric     = "E001" // unknown error
	ErrCodeNotFound    = "E002" // file or directory missing
	ErrCodeUnsupported = "E003" // unknown file extension
	ErrCodeParse       = "E004" // YAML or JSON syntax error
	ErrCodeBuildFailed = "E005" // CUE evaluation failed
	ErrCodeInvalid     = "E006" // document is not a valid snapshot
	ErrCodeDatabase    = "E007" // store could not be opened or written
	ErrCodeFailed      = "E008" // scenarios failed or replay mismatched
)

// LoadError is a snapshot file that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func LoadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// LoadSnapshotFile reads a snapshot from a .yaml, .yml, .json or .cue file.
// CUE files may hold the document at the path "snapshot" or at the root.
func LoadSnapshotFile(path string) (snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snapshot.Snapshot{}, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	}
	if err != nil {
		return snapshot.Snapshot{}, &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error()}
	}

	var tree any
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return snapshot.Snapshot{}, &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error()}
		}
	case ".cue":
		tree, err = decodeCUE(path, data)
		if err != nil {
			return snapshot.Snapshot{}, err
		}
	default:
		return snapshot.Snapshot{}, &LoadError{
			Code:    ErrCodeUnsupported,
			Path:    path,
			Message: fmt.Sprintf("unsupported file extension %q (want .yaml, .yml, .json or .cue)", ext),
		}
	}

	snap, err := snapshot.Decode(tree)
	if err != nil {
		return snapshot.Snapshot{}, &LoadError{Code: ErrCodeInvalid, Path: path, Message: err.Error()}
	}
	return snap, nil
}

func decodeCUE(path string, data []byte) (any, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	if sub := value.LookupPath(cue.ParsePath("snapshot")); sub.Exists() {
		value = sub
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error()}
	}
	return tree, nil
}

func cueLoadError(path string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error()}
	for _, e := range cueerrors.Errors(err) {
		if pos := e.Position(); pos.IsValid() {
			le.Pos = pos
			break
		}
	}
	return le
}
