// Package graph is the compute-graph side of the scheduler: it reads a GEMM
// problem description, classifies its tagged tensors and hands the engine a
// gemm.Graph.
package graph

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDocument = errors.New("invalid problem document")

type documentError struct {
	msg string
}

func (e documentError) Error() string {
	return e.msg
}

func (e documentError) Unwrap() error {
	return ErrInvalidDocument
}

func invalidf(format string, args ...any) error {
	return documentError{msg: fmt.Sprintf(format, args...)}
}

// Format is the encoding of a problem document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Anything that is not
// YAML is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Dtypes names the element types of the problem. Empty fields take defaults
// derived from the operand types.
type Dtypes struct {
	A    string `json:"a,omitempty" yaml:"a,omitempty"`
	B    string `json:"b,omitempty" yaml:"b,omitempty"`
	Acc  string `json:"acc,omitempty" yaml:"acc,omitempty"`
	Out  string `json:"out,omitempty" yaml:"out,omitempty"`
	Bias string `json:"bias,omitempty" yaml:"bias,omitempty"`
}

// TensorSpec is one tensor of the problem as the host describes it.
type TensorSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Tag         string   `json:"tag,omitempty" yaml:"tag,omitempty"`
	Dtype       string   `json:"dtype,omitempty" yaml:"dtype,omitempty"`
	SrcDtype    string   `json:"src_dtype,omitempty" yaml:"src_dtype,omitempty"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	RoundMode   string   `json:"round_mode,omitempty" yaml:"round_mode,omitempty"`
	Fractal     bool     `json:"fractal,omitempty" yaml:"fractal,omitempty"`
}

// Document is a GEMM problem description.
type Document struct {
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	M          int          `json:"m" yaml:"m"`
	K          int          `json:"k" yaml:"k"`
	N          int          `json:"n" yaml:"n"`
	Batch      int          `json:"batch,omitempty" yaml:"batch,omitempty"`
	Bias       bool         `json:"bias,omitempty" yaml:"bias,omitempty"`
	TransposeB bool         `json:"transpose_b,omitempty" yaml:"transpose_b,omitempty"`
	Dtypes     Dtypes       `json:"dtypes,omitempty" yaml:"dtypes,omitempty"`
	Tensors    []TensorSpec `json:"tensors,omitempty" yaml:"tensors,omitempty"`
}

// Decode reads one document. Unknown fields are rejected so that typos in
// hand-written problem files do not silently fall back to defaults.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml problem: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json problem: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown problem format %q", format)
	}
	return &doc, nil
}

func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, FormatFor(path))
}
