package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "DROPZONE_"

var durationType = reflect.TypeOf(time.Duration(0))

// optionField is one settable field of a CLI options struct.
type optionField struct {
	name  string
	value reflect.Value
	flag  string
	toml  string
	env   string
}

func optionFields(opts any) ([]optionField, error) {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("options must be a pointer to a struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	fields := make([]optionField, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f := optionField{
			name:  sf.Name,
			value: v.Field(i),
			flag:  flagName(sf.Name),
			toml:  sf.Tag.Get("toml"),
		}
		if env := sf.Tag.Get("env"); env != "" {
			f.env = EnvPrefix + env
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// LoadConfig fills opts from the TOML file named by its Config field and
// from DROPZONE_* environment variables. Precedence is CLI > env > file:
// fields whose flag was set on cmd are left untouched. A missing file is
// not an error; an unparseable file or env value is.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields, err := optionFields(opts)
	if err != nil {
		return err
	}

	fromCLI := func(f optionField) bool {
		if cmd == nil {
			return false
		}
		fl := cmd.Flags().Lookup(f.flag)
		return fl != nil && fl.Changed
	}

	var file map[string]any
	for _, f := range fields {
		if f.name == "Config" && f.value.Kind() == reflect.String {
			file, err = readTOML(f.value.String())
			if err != nil {
				return err
			}
			break
		}
	}

	for _, f := range fields {
		if fromCLI(f) {
			continue
		}
		if f.toml != "" && file != nil {
			if raw, ok := lookupKey(file, f.toml); ok {
				if err := assign(f.value, raw); err != nil {
					return fmt.Errorf("config key %s: %w", f.toml, err)
				}
			}
		}
		if f.env != "" {
			if raw, ok := os.LookupEnv(f.env); ok && raw != "" {
				if err := assignString(f.value, raw); err != nil {
					return fmt.Errorf("env %s: %w", f.env, err)
				}
			}
		}
	}
	return nil
}

func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var out map[string]any
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return out, nil
}

// flagName converts a field name to its humacli flag, treating runs of
// capitals as one word: "LoggingLevel" -> "logging-level",
// "CORSOrigin" -> "cors-origin".
func flagName(field string) string {
	runes := []rune(field)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookupKey resolves a dotted key such as "api.listen" in a decoded TOML document.
func lookupKey(doc map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := doc[part].(map[string]any)
		if !ok {
			return nil, false
		}
		doc = next
	}
	v, ok := doc[parts[len(parts)-1]]
	return v, ok
}

// assign sets field from a decoded TOML value.
func assign(field reflect.Value, raw any) error {
	if s, ok := raw.(string); ok {
		return assignString(field, s)
	}

	switch {
	case field.Type() == durationType:
		n, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("want duration string or seconds, got %T", raw)
		}
		field.SetInt(int64(time.Duration(n) * time.Second))
	case field.Kind() == reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", raw)
		}
		field.SetBool(b)
	case field.CanInt():
		n, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", raw)
		}
		field.SetInt(n)
	case field.CanFloat():
		switch n := raw.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		default:
			return fmt.Errorf("want number, got %T", raw)
		}
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("want array, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprint(item))
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// assignString sets field from its textual form (env values, quoted TOML).
// String slices are comma separated.
func assignString(field reflect.Value, raw string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.String:
		field.SetString(raw)
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case field.CanInt():
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case field.CanFloat():
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of the settings file on top
// of the defaults. A missing or unparseable file yields the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := DefaultSettings().Logging
	if cfg.Modules == nil {
		cfg.Modules = make(map[string]string)
	}
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	doc := struct {
		Logging logging.Config `toml:"logging"`
	}{Logging: cfg}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg
	}
	if doc.Logging.Modules == nil {
		doc.Logging.Modules = make(map[string]string)
	}
	return doc.Logging
}
