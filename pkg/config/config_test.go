package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.WordSize != 4 || cfg.StackAlign != 16 {
		t.Errorf("unexpected rv32 target properties: word=%d align=%d", cfg.WordSize, cfg.StackAlign)
	}
	if !cfg.IsWarningEnabled(WarnUnreachableCode) {
		t.Errorf("unreachable-code should default on")
	}
	if cfg.IsWarningEnabled(WarnUnusedValue) {
		t.Errorf("unused-value should default off")
	}
}

func TestApplyFlag(t *testing.T) {
	cfg := NewConfig()

	if !cfg.ApplyFlag("-Wunused-value") {
		t.Fatalf("flag not recognized")
	}
	if !cfg.IsWarningEnabled(WarnUnusedValue) {
		t.Errorf("-Wunused-value did not enable the warning")
	}

	if !cfg.ApplyFlag("-Wno-unreachable-code") {
		t.Fatalf("flag not recognized")
	}
	if cfg.IsWarningEnabled(WarnUnreachableCode) {
		t.Errorf("-Wno-unreachable-code did not disable the warning")
	}

	if cfg.ApplyFlag("-Wbogus") {
		t.Errorf("unknown warning name accepted")
	}
	if cfg.ApplyFlag("--debug") {
		t.Errorf("non-warning flag accepted")
	}
}

func TestApplyFlagAll(t *testing.T) {
	cfg := NewConfig()
	if !cfg.ApplyFlag("-Wall") {
		t.Fatalf("-Wall not recognized")
	}
	for i := Warning(0); i < WarnCount; i++ {
		if !cfg.IsWarningEnabled(i) {
			t.Errorf("-Wall left warning %d disabled", i)
		}
	}

	cfg.ApplyFlag("-Wno-all")
	for i := Warning(0); i < WarnCount; i++ {
		if cfg.IsWarningEnabled(i) {
			t.Errorf("-Wno-all left warning %d enabled", i)
		}
	}
}
