package pagination_test

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/JaimeStill/creditdesk/pkg/pagination"
	"github.com/JaimeStill/creditdesk/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "50")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize = %d, want 50", cfg.DefaultPageSize)
	}
	if cfg.MaxPageSize != 100 {
		t.Errorf("MaxPageSize = %d, want 100", cfg.MaxPageSize)
	}

	for _, bad := range []pagination.Config{
		{DefaultPageSize: 200, MaxPageSize: 100},
		{DefaultPageSize: 20, MaxPageSize: 5000},
	} {
		err := bad.Finalize(nil)
		if err == nil || !strings.Contains(err.Error(), "cannot exceed") {
			t.Errorf("%+v: got %v", bad, err)
		}
	}
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		req          pagination.PageRequest
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{name: "zero values", req: pagination.PageRequest{}, wantPage: 1, wantPageSize: 20},
		{name: "negative page", req: pagination.PageRequest{Page: -1, PageSize: 10}, wantPage: 1, wantPageSize: 10},
		{name: "clamped size", req: pagination.PageRequest{Page: 2, PageSize: 500}, wantPage: 2, wantPageSize: 100, wantOffset: 100},
		{name: "preserved", req: pagination.PageRequest{Page: 3, PageSize: 25}, wantPage: 3, wantPageSize: 25, wantOffset: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Normalize(defaultConfig())
			if tt.req.Page != tt.wantPage || tt.req.PageSize != tt.wantPageSize {
				t.Errorf("got page %d size %d, want %d %d", tt.req.Page, tt.req.PageSize, tt.wantPage, tt.wantPageSize)
			}
			if got := tt.req.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
		})
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	values := url.Values{
		"page":      {"2"},
		"page_size": {"15"},
		"search":    {" override "},
		"sort":      {"Reviewer,-OccurredAt"},
	}

	req, err := pagination.PageRequestFromQuery(values, defaultConfig())
	if err != nil {
		t.Fatalf("PageRequestFromQuery: %v", err)
	}

	if req.Page != 2 || req.PageSize != 15 {
		t.Errorf("page: got %d/%d", req.Page, req.PageSize)
	}
	if req.Search == nil || *req.Search != "override" {
		t.Errorf("Search = %v", req.Search)
	}
	if len(req.Sort) != 2 || !req.Sort[1].Descending {
		t.Errorf("Sort = %v", req.Sort)
	}

	empty, err := pagination.PageRequestFromQuery(url.Values{"search": {"  "}}, defaultConfig())
	if err != nil {
		t.Fatalf("PageRequestFromQuery: %v", err)
	}
	if empty.Page != 1 || empty.PageSize != 20 || empty.Search != nil {
		t.Errorf("defaults: got %+v", empty)
	}
}

func TestPageRequestFromQueryRejectsMalformed(t *testing.T) {
	for _, values := range []url.Values{
		{"page": {"two"}},
		{"page_size": {"1.5"}},
	} {
		_, err := pagination.PageRequestFromQuery(values, defaultConfig())
		if !errors.Is(err, pagination.ErrInvalidPage) {
			t.Errorf("%v: got %v, want ErrInvalidPage", values, err)
		}
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		page           int
		wantTotalPages int
		wantMore       bool
	}{
		{"exact division", 100, 1, 5, true},
		{"remainder", 101, 6, 6, false},
		{"last full page", 100, 5, 5, false},
		{"empty", 0, 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pagination.PageRequest{Page: tt.page, PageSize: 20}
			result := pagination.NewPageResult([]string{"a"}, tt.total, req)
			if result.TotalPages != tt.wantTotalPages {
				t.Errorf("TotalPages = %d, want %d", result.TotalPages, tt.wantTotalPages)
			}
			if result.HasMore != tt.wantMore {
				t.Errorf("HasMore = %v, want %v", result.HasMore, tt.wantMore)
			}
		})
	}

	if r := pagination.NewPageResult[string](nil, 0, pagination.PageRequest{Page: 1, PageSize: 20}); r.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	for _, input := range []string{
		`"Reviewer,-OccurredAt"`,
		`[{"Field":"Reviewer","Descending":false},{"Field":"OccurredAt","Descending":true}]`,
	} {
		var sf pagination.SortFields
		if err := json.Unmarshal([]byte(input), &sf); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if len(sf) != 2 || sf[1] != (query.SortField{Field: "OccurredAt", Descending: true}) {
			t.Errorf("%s: got %v", input, sf)
		}
	}
}
