package capturehtml

import (
	"testing"
)

func TestJSString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#poster-capture", `"#poster-capture"`},
		{`a"b`, `"a\"b"`},
		{"</script>", `"\u003c/script\u003e"`},
	}
	for _, tt := range tests {
		if got := jsString(tt.in); got != tt.want {
			t.Errorf("jsString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFirstErr(t *testing.T) {
	if firstErr(nil, nil) != nil {
		t.Error("firstErr(nil, nil) != nil")
	}
}
