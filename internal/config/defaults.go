package config

// GetDefaults returns the default configuration values
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"backend":                  "ollama",
		"ollama_host":              "127.0.0.1",
		"ollama_port":              11434,
		"ollama_model":             "",
		"gemini_api_key":           "",
		"gemini_model":             "gemini-2.0-flash",
		"projects_dir":             "~/.pythautom/projects",
		"state_dir":                "~/.pythautom/state",
		"uv_cmd":                   "uv",
		"main_script":              "main.py",
		"auto_correct":             true,
		"max_correction_attempts":  2,
		"stream_flush_interval_ms": 50,
		"export_timeout":           900,
		"structure_info_max_len":   1500,
		"history_max_entries":      500,
		"log_level":                "info",
	}
}
