package extract

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"trims whitespace", "  hello  ", "hello"},
		{"zero width stripped", "he​llo\ufeff", "hello"},
		{"crlf normalized", "line one\r\nline two\rline three", "line one\nline two\nline three"},
		{"trailing spaces removed", "line one   \nline two\t", "line one\nline two"},
		{"standalone image name removed", "Dear Sir\nIMG-2041.jpeg\nplease pay", "Dear Sir\n\nplease pay"},
		{"standalone filename removed", "scan-001.png\nInvoice total: 42,80", "Invoice total: 42,80"},
		{"excessive newlines collapsed", "a\n\n\n\n\n\nb", "a\n\n\nb"},
		{"inline filename kept", "see attachment photo.jpg for details", "see attachment photo.jpg for details"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
