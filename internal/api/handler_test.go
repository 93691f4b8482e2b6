package api

import (
	"net/http/httptest"
	"testing"
)

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "без параметра — дефолт", url: "/api/v1/overrides", want: 100},
		{name: "валидное значение", url: "/api/v1/overrides?limit=25", want: 25},
		{name: "ноль — дефолт", url: "/api/v1/overrides?limit=0", want: 100},
		{name: "отрицательное — дефолт", url: "/api/v1/overrides?limit=-5", want: 100},
		{name: "мусор — дефолт", url: "/api/v1/overrides?limit=abc", want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if got := queryLimit(r, 100); got != tt.want {
				t.Errorf("queryLimit = %d, хотели %d", got, tt.want)
			}
		})
	}
}
