package config

import "strings"

type Mode int

const (
	EmitKoopa Mode = iota
	EmitRiscv
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnOverflow
	WarnUnusedValue
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning

	Mode       Mode
	WordSize   int
	StackAlign int
	Debug      bool
	DumpAST    bool
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
		WordSize:   4,
		StackAlign: 16,
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that will never be executed."},
		WarnOverflow:        {"overflow", true, "Warn when an integer constant does not fit in 32 bits."},
		WarnUnusedValue:     {"unused-value", false, "Warn about expression statements whose value is discarded."},
		WarnExtra:           {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag handles a -W<name> / -Wno-<name> style toggle. It returns
// false for a non -W flag or an unknown warning name, leaving the
// configuration unchanged; the driver rejects such flags.
func (c *Config) ApplyFlag(flag string) bool {
	trimmed := strings.TrimPrefix(flag, "-")
	if !strings.HasPrefix(trimmed, "W") {
		return false
	}
	name := strings.TrimPrefix(trimmed, "W")
	enable := true
	if strings.HasPrefix(name, "no-") {
		name = strings.TrimPrefix(name, "no-")
		enable = false
	}
	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return true
	}
	if w, ok := c.WarningMap[name]; ok {
		c.SetWarning(w, enable)
		return true
	}
	return false
}
