package config

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ValueType is the expected type of a configuration value.
type ValueType int

const (
	TypeBool ValueType = iota
	TypeInt
	TypeString
	TypeEnum
)

func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// KeySchema describes a settable configuration key.
type KeySchema struct {
	Key           string
	Type          ValueType
	AllowedValues []string // enum only
	Min, Max      int      // int only; Max 0 means unbounded
	Secret        bool     // masked by "config show"
	Description   string
}

// KnownKeys is the registry of configuration keys accepted by "config set".
var KnownKeys = map[string]KeySchema{
	"backend": {
		Key: "backend", Type: TypeEnum, AllowedValues: []string{"ollama", "gemini"},
		Description: "LLM backend used for generation",
	},
	"ollama_host":  {Key: "ollama_host", Type: TypeString, Description: "Ollama server host"},
	"ollama_port":  {Key: "ollama_port", Type: TypeInt, Min: 1, Max: 65535, Description: "Ollama server port"},
	"ollama_model": {Key: "ollama_model", Type: TypeString, Description: "Ollama model (empty selects the first installed)"},
	"gemini_api_key": {
		Key: "gemini_api_key", Type: TypeString, Secret: true,
		Description: "Google Gemini API key",
	},
	"gemini_model": {Key: "gemini_model", Type: TypeString, Description: "Gemini model name"},
	"projects_dir": {Key: "projects_dir", Type: TypeString, Description: "Directory holding projects"},
	"state_dir":    {Key: "state_dir", Type: TypeString, Description: "Directory for task history"},
	"uv_cmd":       {Key: "uv_cmd", Type: TypeString, Description: "Path to the uv executable"},
	"main_script":  {Key: "main_script", Type: TypeString, Description: "Script generated and run in each project"},
	"auto_correct": {Key: "auto_correct", Type: TypeBool, Description: "Regenerate code automatically when a run fails"},
	"max_correction_attempts": {
		Key: "max_correction_attempts", Type: TypeInt, Min: 0, Max: 10,
		Description: "Correction attempts per request",
	},
	"stream_flush_interval_ms": {
		Key: "stream_flush_interval_ms", Type: TypeInt, Min: 10, Max: 1000,
		Description: "How often streamed code is flushed to the display",
	},
	"export_timeout": {
		Key: "export_timeout", Type: TypeInt, Min: 1, Max: 86400,
		Description: "Executable export timeout in seconds",
	},
	"structure_info_max_len": {
		Key: "structure_info_max_len", Type: TypeInt, Min: 0,
		Description: "Maximum length of the project listing sent to the backend",
	},
	"history_max_entries": {
		Key: "history_max_entries", Type: TypeInt, Min: 1, Max: 100000,
		Description: "Task history entries kept",
	},
	"log_level": {
		Key: "log_level", Type: TypeEnum, AllowedValues: []string{"debug", "info", "warn", "error"},
		Description: "Diagnostic log level",
	},
}

// ErrUnknownKey is returned for keys missing from KnownKeys.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return "unknown configuration key: " + e.Key
}

// SortedKeys lists KnownKeys alphabetically.
func SortedKeys() []string {
	keys := make([]string, 0, len(KnownKeys))
	for k := range KnownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseValue converts raw to the type registered for key.
func ParseValue(key, raw string) (any, error) {
	schema, ok := KnownKeys[key]
	if !ok {
		return nil, ErrUnknownKey{Key: key}
	}
	switch schema.Type {
	case TypeBool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean: %q (expected true or false)", raw)
		}
		return b, nil
	case TypeInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %q", raw)
		}
		if n < schema.Min || (schema.Max > 0 && n > schema.Max) {
			if schema.Max > 0 {
				return nil, fmt.Errorf("%s must be between %d and %d, got %d", key, schema.Min, schema.Max, n)
			}
			return nil, fmt.Errorf("%s must be at least %d, got %d", key, schema.Min, n)
		}
		return n, nil
	case TypeEnum:
		if !slices.Contains(schema.AllowedValues, raw) {
			return nil, fmt.Errorf("invalid value: %q (valid options: %s)", raw, strings.Join(schema.AllowedValues, ", "))
		}
		return raw, nil
	default:
		return raw, nil
	}
}
