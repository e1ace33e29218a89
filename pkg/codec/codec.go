package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"mercator-hq/arbiter/pkg/model"
)

// DefaultMaxSize is the default input size limit (10MB).
const DefaultMaxSize = 10 * 1024 * 1024

// Decoder decodes definition documents.
type Decoder struct {
	maxSize int64
	strict  bool
}

// NewDecoder creates a decoder with default settings.
func NewDecoder() *Decoder {
	return &Decoder{
		maxSize: DefaultMaxSize,
		strict:  false,
	}
}

// WithMaxSize sets the maximum input size in bytes.
func (d *Decoder) WithMaxSize(size int64) *Decoder {
	d.maxSize = size
	return d
}

// WithStrict rejects documents carrying unknown fields.
func (d *Decoder) WithStrict(strict bool) *Decoder {
	d.strict = strict
	return d
}

// DecodeWorkflow decodes a workflow definition.
func (d *Decoder) DecodeWorkflow(data []byte, format Format) (*model.WorkflowDefinition, error) {
	return d.decodeWorkflow(data, format, "")
}

// DecodeRules decodes a standalone rule set: either a list of rules or a
// document with a top-level rules key.
func (d *Decoder) DecodeRules(data []byte, format Format) ([]model.Rule, error) {
	return d.decodeRules(data, format, "")
}

// ReadWorkflowFile reads and decodes a workflow file, inferring the format
// from its extension.
func (d *Decoder) ReadWorkflowFile(path string) (*model.WorkflowDefinition, error) {
	data, format, err := d.readFile(path)
	if err != nil {
		return nil, err
	}
	return d.decodeWorkflow(data, format, path)
}

// ReadRulesFile reads and decodes a rule set file.
func (d *Decoder) ReadRulesFile(path string) ([]model.Rule, error) {
	data, format, err := d.readFile(path)
	if err != nil {
		return nil, err
	}
	return d.decodeRules(data, format, path)
}

func (d *Decoder) readFile(path string) ([]byte, Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if d.maxSize > 0 && info.Size() > d.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), d.maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

func (d *Decoder) decodeWorkflow(data []byte, format Format, source string) (*model.WorkflowDefinition, error) {
	var doc workflowDocument
	if err := d.unmarshal(data, format, source, &doc); err != nil {
		return nil, err
	}
	b := newBuilder(source)
	def := b.buildWorkflow(&doc)
	if err := b.err(); err != nil {
		return nil, err
	}
	return def, nil
}

func (d *Decoder) decodeRules(data []byte, format Format, source string) ([]model.Rule, error) {
	var docs []ruleDocument
	if isList(data, format) {
		if err := d.unmarshal(data, format, source, &docs); err != nil {
			return nil, err
		}
	} else {
		var set ruleSetDocument
		if err := d.unmarshal(data, format, source, &set); err != nil {
			return nil, err
		}
		docs = set.Rules
	}

	b := newBuilder(source)
	rules := b.buildRules("rules", docs)
	if err := b.err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *Decoder) unmarshal(data []byte, format Format, source string, out any) error {
	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), d.maxSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &DecodeError{Source: source, Message: "empty document"}
	}

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(d.strict)
		if err := dec.Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return &DecodeError{Source: source, Message: "empty document", Err: err}
			}
			return &DecodeError{Source: source, Line: yamlErrorLine(err), Message: err.Error(), Err: err}
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if d.strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(out); err != nil {
			return &DecodeError{Source: source, Line: jsonErrorLine(data, err), Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}

func isList(data []byte, format Format) bool {
	if format == FormatJSON {
		trimmed := bytes.TrimLeft(data, " \t\r\n")
		return len(trimmed) > 0 && trimmed[0] == '['
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return false
	}
	return root.Content[0].Kind == yaml.SequenceNode
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func yamlErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	line, _ := strconv.Atoi(m[1])
	return line
}

func jsonErrorLine(data []byte, err error) int {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

var defaultDecoder = NewDecoder()

// DecodeWorkflow decodes a workflow definition with default settings.
func DecodeWorkflow(data []byte, format Format) (*model.WorkflowDefinition, error) {
	return defaultDecoder.DecodeWorkflow(data, format)
}

// DecodeRules decodes a rule set with default settings.
func DecodeRules(data []byte, format Format) ([]model.Rule, error) {
	return defaultDecoder.DecodeRules(data, format)
}

// ReadWorkflowFile reads a workflow file with default settings.
func ReadWorkflowFile(path string) (*model.WorkflowDefinition, error) {
	return defaultDecoder.ReadWorkflowFile(path)
}

// ReadRulesFile reads a rule set file with default settings.
func ReadRulesFile(path string) ([]model.Rule, error) {
	return defaultDecoder.ReadRulesFile(path)
}

// EncodeWorkflow encodes a workflow definition.
//
// Decoding the output yields a deep-equal definition only when def is in
// canonical form, as returned by DecodeWorkflow or Normalize. Values built in
// Go come back in their decoded shapes: an int value as float64 and a
// []string as []any.
func EncodeWorkflow(def *model.WorkflowDefinition, format Format) ([]byte, error) {
	if def == nil {
		return nil, errors.New("nil workflow definition")
	}
	return marshal(workflowToDocument(def), format)
}

// Normalize returns a copy of def in canonical form: every value in the
// shape a decode produces and the decoder's defaults applied. Encoding a
// normalized definition and decoding it again yields a deep-equal
// definition.
func Normalize(def *model.WorkflowDefinition) (*model.WorkflowDefinition, error) {
	data, err := EncodeWorkflow(def, FormatJSON)
	if err != nil {
		return nil, err
	}
	return DecodeWorkflow(data, FormatJSON)
}

// EncodeRules encodes a standalone rule set under a top-level rules key.
func EncodeRules(rules []model.Rule, format Format) ([]byte, error) {
	docs := rulesToDocuments(rules)
	if docs == nil {
		docs = []ruleDocument{}
	}
	return marshal(&ruleSetDocument{Rules: docs}, format)
}

// WriteWorkflowFile encodes def into path, choosing the format from the
// extension.
func WriteWorkflowFile(path string, def *model.WorkflowDefinition) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := EncodeWorkflow(def, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Convert re-encodes a workflow document from one format to another.
func Convert(data []byte, from, to Format) ([]byte, error) {
	def, err := DecodeWorkflow(data, from)
	if err != nil {
		return nil, err
	}
	return EncodeWorkflow(def, to)
}

func marshal(doc any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
