package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"feedpush/internal/model"
)

func TestParseSubArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		keywords   []string
		categories []model.Category
		wantErr    bool
	}{
		{
			name:     "single keyword",
			args:     "vps",
			keywords: []string{"vps"},
		},
		{
			name:     "keyword list",
			args:     "vps,storage, nat",
			keywords: []string{"vps", "storage", "nat"},
		},
		{
			name:       "keywords with categories",
			args:       "vps -c trade,tech",
			keywords:   []string{"vps"},
			categories: []model.Category{model.CategoryTrade, model.CategoryTech},
		},
		{
			name:     "wildcard",
			args:     "*",
			keywords: []string{"*"},
		},
		{name: "empty", args: "", wantErr: true},
		{name: "only commas", args: ",,,", wantErr: true},
		{name: "unknown category", args: "vps -c offtopic", wantErr: true},
		{name: "dangling flag", args: "vps -c", wantErr: true},
		{name: "trailing garbage", args: "vps -c trade extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keywords, categories, err := ParseSubArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.keywords, keywords); diff != "" {
				t.Errorf("keywords mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.categories, categories); diff != "" {
				t.Errorf("categories mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLatestArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		category model.Category
		keyword  string
		count    int
		wantErr  bool
	}{
		{name: "no arguments", args: "", category: model.CategoryAll},
		{name: "category only", args: "trade", category: model.CategoryTrade},
		{name: "all is the default scope", args: "all", category: model.CategoryAll},
		{name: "count only", args: "15", category: model.CategoryAll, count: 15},
		{
			name:     "category keyword count",
			args:     "trade vps 5",
			category: model.CategoryTrade,
			keyword:  "vps",
			count:    5,
		},
		{
			name:     "bare keyword is not a category",
			args:     "kubernetes",
			category: model.CategoryAll,
			keyword:  "kubernetes",
		},
		{
			name:     "multi-word keyword",
			args:     "tech flash sale",
			category: model.CategoryTech,
			keyword:  "flash sale",
		},
		{name: "count too large", args: "21", wantErr: true},
		{name: "count zero", args: "trade 0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, keyword, count, err := ParseLatestArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if category != tt.category || keyword != tt.keyword || count != tt.count {
				t.Errorf("got (%s, %q, %d), want (%s, %q, %d)",
					category, keyword, count, tt.category, tt.keyword, tt.count)
			}
		})
	}
}
