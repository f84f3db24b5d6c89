package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Alia5/macrokey/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" optional:"" name:"command" help:"Command to generate config for" enum:"daemon,profile" default:"daemon"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run writes the flags of the command with their defaults. YAML and TOML
// templates carry the flag help, and the choices of enum flags, as comments.
func (c *ConfigInit) Run() error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	var fields []templateField
	switch c.Command {
	case "daemon":
		fields = templateFields(reflect.TypeOf(Daemon{}))
	case "profile":
		fields = templateFields(reflect.TypeOf(ProfileTarget{}))
	default:
		return errors.New("unknown command; expected 'daemon' or 'profile'")
	}

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + format
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = encodeJSONTemplate(fields)
	case "yaml":
		data, err = encodeYAMLTemplate(fields)
	case "toml":
		data, err = encodeTOMLTemplate(fields)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// templateField is one configurable flag, in declaration order.
type templateField struct {
	Key   string
	Value any
	Help  string
}

var durationType = reflect.TypeOf(time.Duration(0))

func templateFields(t reflect.Type) []templateField {
	var out []templateField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("name")
		if key == "" {
			r := []rune(f.Name)
			r[0] = unicode.ToLower(r[0])
			key = string(r)
		}
		val := templateValue(f.Type, f.Tag.Get("default"))
		if val == nil {
			continue
		}
		help := f.Tag.Get("help")
		if enum := f.Tag.Get("enum"); enum != "" {
			help += " (one of: " + strings.ReplaceAll(enum, ",", ", ") + ")"
		}
		out = append(out, templateField{Key: key, Value: val, Help: help})
	}
	return out
}

func templateValue(t reflect.Type, def string) any {
	if t == durationType {
		if def == "" {
			return "0s"
		}
		return def
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Slice:
		out := []any{}
		if def != "" {
			for _, v := range strings.Split(def, ",") {
				out = append(out, strings.TrimSpace(v))
			}
		}
		return out
	}
	return nil
}

func encodeJSONTemplate(fields []templateField) ([]byte, error) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return json.MarshalIndent(m, "", "  ")
}

func encodeYAMLTemplate(fields []templateField) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		var v yaml.Node
		if err := v.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Key, err)
		}
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}
		if f.Help != "" {
			k.HeadComment = "# " + f.Help
		}
		doc.Content = append(doc.Content, k, &v)
	}
	return yaml.Marshal(doc)
}

func encodeTOMLTemplate(fields []templateField) ([]byte, error) {
	tree, err := toml.TreeFromMap(map[string]any{})
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		tree.SetWithComment(f.Key, f.Help, false, f.Value)
	}
	return tree.Marshal()
}
