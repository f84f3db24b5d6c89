package storage

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/macrokey/macro"
)

// Format is an export file format.
type Format string

const (
	FormatZip  Format = "zip"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (Format, error) {
	f := strings.ToLower(strings.TrimPrefix(filepath.Ext(s), "."))
	if f == "" {
		f = strings.ToLower(s)
	}
	switch f {
	case "zip":
		return FormatZip, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Export writes a portable copy of p under a fresh id. The zip format bundles
// the icon and background files and rewrites their references to paths
// inside the archive.
func (s *JSON) Export(p *macro.Profile, w io.Writer, format Format) error {
	c := p.Copy(uuid.NewString(), p.Name)
	switch format {
	case FormatZip:
		return s.exportZip(c, w)
	case FormatJSON:
		data, err := MarshalProfile(c)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatYAML, FormatTOML:
		doc, err := profileDocument(c)
		if err != nil {
			return err
		}
		var data []byte
		if format == FormatYAML {
			data, err = yaml.Marshal(doc)
		} else {
			data, err = toml.Marshal(doc)
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", format, err)
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func (s *JSON) exportZip(p *macro.Profile, w io.Writer) error {
	zw := zip.NewWriter(w)
	base := p.ID + profileExt + ".resources/"
	for _, ref := range []*string{&p.Icon, &p.Background} {
		src := s.ResourcePath(p, *ref)
		if src == "" {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			continue
		}
		name := base + filepath.Base(src)
		if err := addFile(zw, name, src); err != nil {
			return fmt.Errorf("export resource: %w", err)
		}
		*ref = name
	}
	data, err := MarshalProfile(p)
	if err != nil {
		return err
	}
	fw, err := zw.Create(p.ID + profileExt)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

// profileDocument converts p to a generic tree for the YAML and TOML
// encoders. TOML has no null, so nulls are dropped.
func profileDocument(p *macro.Profile) (map[string]any, error) {
	data, err := MarshalProfile(p)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return dropNulls(doc).(map[string]any), nil
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if e == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(e)
		}
	case []any:
		out := t[:0]
		for _, e := range t {
			if e != nil {
				out = append(out, dropNulls(e))
			}
		}
		return out
	}
	return v
}
