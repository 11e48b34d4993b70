// Package yaml edits config files in place. Comments, key order and
// formatting of untouched lines survive a Patch.
package yaml

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

var ErrPathNotFound = errors.New("yaml: path not found")

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Marshal(v any) ([]byte, error) {
	return encode(v)
}

// Patch sets key to value in the mapping under path. A nil value removes
// the key. Only a top level section can be created when path is missing.
func Patch(src []byte, key string, value any, path ...string) ([]byte, error) {
	var put []byte
	if value != nil {
		var err error
		if put, err = encode(map[string]any{key: value}); err != nil {
			return nil, err
		}
	}

	parent, err := lookup(src, path)
	if err != nil {
		return nil, err
	}

	var dst []byte
	switch {
	case parent != nil:
		dst = patchMapping(src, parent, key, put)
	case value == nil:
		return src, nil
	case len(path) == 0:
		dst = appendBlock(src, put)
	case len(path) == 1:
		section, err := encode(map[string]any{path[0]: map[string]any{key: value}})
		if err != nil {
			return nil, err
		}
		dst = appendBlock(src, section)
	default:
		return nil, ErrPathNotFound
	}

	// never write a file that can't be read back
	if err = yaml.Unmarshal(dst, &map[string]any{}); err != nil {
		return nil, err
	}
	return dst, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookup returns the mapping node under path or nil
func lookup(src []byte, path []string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	node := doc.Content[0]
	for _, name := range path {
		if _, node = child(node, name); node == nil {
			return nil, nil
		}
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil
	}
	return node, nil
}

func child(mapping *yaml.Node, name string) (key, value *yaml.Node) {
	if mapping.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == name {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}
	return nil, nil
}

// lastLine - the last source line taken by the node
func lastLine(node *yaml.Node) int {
	for len(node.Content) > 0 {
		node = node.Content[len(node.Content)-1]
	}
	return node.Line
}

func patchMapping(src []byte, mapping *yaml.Node, key string, put []byte) []byte {
	if k, v := child(mapping, key); k != nil {
		from := lineOffset(src, k.Line)
		to := lineOffset(src, lastLine(v)+1)
		if to < 0 {
			to = len(src)
		}
		return splice(src, from, to, indent(put, k.Column-1))
	}

	if put == nil {
		return src
	}

	column := mapping.Column
	if len(mapping.Content) > 0 {
		column = mapping.Content[0].Column
	}

	at := lineOffset(src, lastLine(mapping)+1)
	if at < 0 {
		src = withNewline(src)
		at = len(src)
	}
	return splice(src, at, at, indent(put, column-1))
}

func appendBlock(src, block []byte) []byte {
	dst := make([]byte, 0, len(src)+len(block)+1)
	dst = append(dst, src...)
	dst = withNewline(dst)
	return append(dst, block...)
}

func withNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] != '\n' {
		return append(b, '\n')
	}
	return b
}

func splice(src []byte, from, to int, put []byte) []byte {
	dst := make([]byte, 0, len(src)-(to-from)+len(put))
	dst = append(dst, src[:from]...)
	dst = append(dst, put...)
	return append(dst, src[to:]...)
}

func indent(b []byte, n int) []byte {
	if n <= 0 || len(b) == 0 {
		return b
	}
	pad := bytes.Repeat([]byte{' '}, n)
	var dst []byte
	for _, line := range bytes.SplitAfter(b, []byte{'\n'}) {
		if len(line) > 0 {
			dst = append(dst, pad...)
			dst = append(dst, line...)
		}
	}
	return dst
}

// lineOffset - byte offset of the 1-based line, -1 past the end
func lineOffset(b []byte, line int) int {
	offset := 0
	for l := 1; l < line; l++ {
		i := bytes.IndexByte(b[offset:], '\n')
		if i < 0 {
			return -1
		}
		offset += i + 1
	}
	return offset
}
