package bot

import (
	"fmt"
	"strconv"
	"strings"

	"feedpush/internal/model"
)

// ParseSubArgs parses arguments for /sub.
// Format: <kw[,kw...]> [-c category[,category...]]
func ParseSubArgs(args string) (keywords []string, categories []model.Category, err error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("usage: /sub <keyword[,keyword...]> [-c category[,category...]]")
	}

	keywords = splitList(parts[0])
	if len(keywords) == 0 {
		return nil, nil, fmt.Errorf("at least one keyword is required")
	}

	rest := parts[1:]
	if len(rest) >= 2 && rest[0] == "-c" {
		categories, err = parseCategoryList(rest[1])
		if err != nil {
			return nil, nil, err
		}
		rest = rest[2:]
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("unexpected argument %q", rest[0])
	}

	return keywords, categories, nil
}

// ParseLatestArgs parses arguments for /latest.
// Format: [category] [keyword] [count]
func ParseLatestArgs(args string) (model.Category, string, int, error) {
	category := model.CategoryAll
	keyword := ""
	count := 0

	parts := strings.Fields(args)

	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if n, err := strconv.Atoi(last); err == nil {
			if n < 1 || n > 20 {
				return "", "", 0, fmt.Errorf("count must be between 1 and 20")
			}
			count = n
			parts = parts[:len(parts)-1]
		}
	}

	if len(parts) > 0 {
		if parts[0] == string(model.CategoryAll) {
			parts = parts[1:]
		} else if c, ok := model.ParseCategory(parts[0]); ok {
			category = c
			parts = parts[1:]
		}
	}

	if len(parts) > 0 {
		keyword = strings.Join(parts, " ")
	}

	return category, keyword, count, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseCategoryList(raw string) ([]model.Category, error) {
	var out []model.Category
	for _, name := range splitList(raw) {
		c, ok := model.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q, valid: %s", name, categoryNames())
		}
		out = append(out, c)
	}
	return out, nil
}

func categoryNames() string {
	var names []string
	for _, c := range model.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
