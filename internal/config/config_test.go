package config

import (
	"os"
	"strings"
	"testing"

	"demandboard/internal/domain"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if !cfg.Board.RequireDeliveryDate {
		t.Fatalf("default should require a delivery date")
	}
	cat := cfg.DomainCatalog()
	if !cat.HasSubgroup("Help Desk") || cat.HasSubgroup("Marketing") {
		t.Fatalf("unexpected subgroup catalog: %v", cat.Subgroups)
	}
	if !cat.HasResponsible("anyone") {
		t.Fatalf("empty responsibles should accept any name")
	}
	if got := cat.Title(domain.CategoryStalled); got != "Temas Parados" {
		t.Fatalf("stalled title = %q", got)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no subgroups", "catalog:\n  subgroups: []\n", "subgroups is required"},
		{"duplicate subgroup", "catalog:\n  subgroups: [A, A]\n", "twice"},
		{"empty responsible", "catalog:\n  subgroups: [A]\n  responsibles: ['']\n", "empty entry"},
		{"unknown category", "catalog:\n  subgroups: [A]\nboard:\n  categories:\n    next_week: Próxima\n", "unknown category"},
		{"empty origin", "catalog:\n  subgroups: [A]\nserver:\n  cors_origins: ['']\n", "cors_origins"},
		{"bad yaml", "catalog: [", "invalid config yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Board.Title != Default().Board.Title {
		t.Fatalf("expected default title, got %q", cfg.Board.Title)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load should fail without a config file")
	}

	custom := "board:\n  title: Vendas\ncatalog:\n  subgroups: [BI Analytics]\nserver:\n  joined_lists: true\n"
	if err := os.WriteFile(Path(dir), []byte(custom), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Board.Title != "Vendas" || !cfg.Server.JoinedLists {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
