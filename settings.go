package paintbynumbers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions reads a settings file on top of DefaultOptions. The format
// follows the extension: .yaml/.yml or JSON for anything else.
func LoadOptions(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	opt, err := DecodeOptions(f, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return Options{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return opt, nil
}

// DecodeOptions decodes JSON (or YAML) settings over DefaultOptions.
// Unknown keys are rejected in both formats.
func DecodeOptions(r io.Reader, isYAML bool) (Options, error) {
	opt := DefaultOptions()
	data, err := io.ReadAll(r)
	if err != nil {
		return opt, err
	}
	if isYAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document leaves the defaults.
		if err := dec.Decode(&opt); err != nil && !errors.Is(err, io.EOF) {
			return opt, err
		}
		return opt, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opt); err != nil {
		return opt, err
	}
	return opt, nil
}
