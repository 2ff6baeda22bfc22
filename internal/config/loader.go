package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

// LoadFile reads options from a .toml, .yaml or .yml file. Fields the file
// does not set keep their default values.
func LoadFile(fsys vfs.VFS, path string) (Options, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data using the format implied by the extension of name.
func Parse(name string, data []byte) (Options, error) {
	opts := Defaults()
	// Decoders append into existing slices; start token list empty so a
	// file that sets tokens replaces the defaults.
	defaultTokens := opts.Tokens
	opts.Tokens = nil

	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return Options{}, &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return Options{}, &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	default:
		return Options{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	if opts.Tokens == nil {
		opts.Tokens = defaultTokens
	}
	return opts, nil
}

// Marshal encodes opts in the format implied by the extension of name.
func Marshal(name string, opts Options) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		return toml.Marshal(opts)
	case ".yaml", ".yml":
		return yaml.Marshal(opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}
