// util_test.go — EscapeLike / ClampInt / Env* / LoadFromEnv 表驱动测试。
package util

import (
	"testing"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"percent", "100%", `100\%`},
		{"underscore", "a_b", `a\_b`},
		{"backslash", `a\b`, `a\\b`},
		{"combined", `%_\`, `\%\_\\`},
		{"no_special", "hello", "hello"},
		{"empty", "", ""},
		{"multiple_percent", "%%", `\%\%`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeLike(tt.in)
			if got != tt.want {
				t.Errorf("EscapeLike(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"below_min", -1, 0, 10, 0},
		{"above_max", 20, 0, 10, 10},
		{"in_range", 5, 0, 10, 5},
		{"at_min", 0, 0, 10, 0},
		{"at_max", 10, 0, 10, 10},
		{"negative_range", -5, -10, -1, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampInt(tt.v, tt.lo, tt.hi)
			if got != tt.want {
				t.Errorf("ClampInt(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def, min int
		want     int
	}{
		{"unset", "", 30, 1, 30},
		{"valid", "45", 30, 1, 45},
		{"invalid", "abc", 30, 1, 30},
		{"below_min", "0", 30, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_ENV_INT", tt.value)
			}
			got := EnvInt("TEST_ENV_INT", tt.def, tt.min)
			if got != tt.want {
				t.Errorf("EnvInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"one", "1", false, true},
		{"true", "true", false, true},
		{"yes_upper", "YES", false, true},
		{"on", "on", false, true},
		{"zero", "0", true, false},
		{"false", "false", true, false},
		{"off_spaced", " off ", true, false},
		{"garbage_keeps_default", "maybe", true, true},
		{"unset_keeps_default", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_ENV_BOOL", tt.value)
			}
			got := EnvBool("TEST_ENV_BOOL", tt.def)
			if got != tt.want {
				t.Errorf("EnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	type cfg struct {
		Addr    string  `env:"TEST_LFE_ADDR" default:"127.0.0.1:8081"`
		Retries int     `env:"TEST_LFE_RETRIES" default:"3" min:"1"`
		Ratio   float64 `env:"TEST_LFE_RATIO" default:"0.5" min:"0.1"`
		Debug   bool    `env:"TEST_LFE_DEBUG" default:"false"`
		Skipped string  // 无 env tag, 应保持零值
	}

	t.Setenv("TEST_LFE_RETRIES", "0") // 低于 min, 应钳制到 1
	t.Setenv("TEST_LFE_DEBUG", "yes")

	var c cfg
	LoadFromEnv(&c)

	if c.Addr != "127.0.0.1:8081" {
		t.Errorf("Addr = %q, want default", c.Addr)
	}
	if c.Retries != 1 {
		t.Errorf("Retries = %d, want 1 (min clamp)", c.Retries)
	}
	if c.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", c.Ratio)
	}
	if !c.Debug {
		t.Error("Debug should be true")
	}
	if c.Skipped != "" {
		t.Errorf("Skipped = %q, want empty", c.Skipped)
	}
}

func TestLoadFromEnv_NilSafe(t *testing.T) {
	// nil 与非指针入参不应 panic
	LoadFromEnv(nil)
	var i int
	LoadFromEnv(i)
}

func TestToMapAny(t *testing.T) {
	// 透传 map
	in := map[string]any{"a": 1}
	if got := ToMapAny(in); got["a"] != 1 {
		t.Errorf("passthrough failed: %v", got)
	}

	// struct → map
	type payload struct {
		SQL string `json:"sql"`
	}
	got := ToMapAny(payload{SQL: "SELECT 1"})
	if got["sql"] != "SELECT 1" {
		t.Errorf("struct convert failed: %v", got)
	}

	// 不可序列化 → 空 map
	if got := ToMapAny(make(chan int)); len(got) != 0 {
		t.Errorf("unserializable should give empty map, got %v", got)
	}
}
