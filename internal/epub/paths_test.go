package epub

import "testing"

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name        string
		packagePath string
		href        string
		want        string
	}{
		{"nested", "OEBPS/content.opf", "text/chapter1.xhtml", "OEBPS/text/chapter1.xhtml"},
		{"root package", "content.opf", "chapter1.xhtml", "chapter1.xhtml"},
		{"percent encoded", "OEBPS/content.opf", "text/chapter%201.xhtml", "OEBPS/text/chapter 1.xhtml"},
		{"parent dir", "OEBPS/pkg/content.opf", "../images/cover.jpg", "OEBPS/images/cover.jpg"},
		{"dot segment", "OEBPS/content.opf", "./nav.xhtml", "OEBPS/nav.xhtml"},
		{"leading separator", "OEBPS/content.opf", "/images/a.png", "images/a.png"},
		{"fragment dropped", "OEBPS/content.opf", "toc.xhtml#ch2", "OEBPS/toc.xhtml"},
		{"remote kept", "OEBPS/content.opf", "https://example.com/font.woff", "https://example.com/font.woff"},
		{"empty", "OEBPS/content.opf", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.packagePath, tt.href); got != tt.want {
				t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.packagePath, tt.href, got, tt.want)
			}
		})
	}
}
