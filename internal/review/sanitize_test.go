package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkupSanitizer(t *testing.T) {
	s := NewMarkupSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "out of stock", "out of stock"},
		{"tags stripped", "<b>late</b> delivery", "late delivery"},
		{"script dropped", "<script>alert(1)</script>ok", "ok"},
		{"escaped script not revived", "&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"escaped tag stripped", "&lt;img src=x onerror=alert(1)&gt;broken", "broken"},
		{"punctuation readable", "O'Brien & Sons \"North\"", "O'Brien & Sons \"North\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<")
		})
	}
}
