package dataset

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/techmap/pkg/errors"
)

// Format is a dataset encoding.
type Format int

const (
	// JSON is the payload format served by the original site.
	JSON Format = iota
	// YAML is accepted for hand-maintained datasets.
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFromPath infers the format from a file extension. Unknown
// extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Decode parses a dataset payload. The result is not normalized.
func Decode(r io.Reader, format Format) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "read dataset")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &Dataset{}, nil
	}

	var doc any
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "decode %s dataset", format)
	}
	return fromLoose(doc), nil
}

// Encode writes ds in the given format.
func Encode(w io.Writer, ds *Dataset, format Format) error {
	if format == YAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ds); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ds)
}
