package submit

import "testing"

func TestSupportedExtension(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"app.zip", true},
		{"app.tar.gz", true},
		{"app.tgz", true},
		{"APP.ZIP", true},
		{"app.tar", false},
		{"app.rar", false},
		{"app", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := supportedExtension(tt.path); got != tt.want {
				t.Errorf("supportedExtension(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestProjectNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/myapp.tar.gz", "myapp"},
		{"/tmp/myapp.zip", "myapp"},
		{"build/src.tgz", "src"},
		{"weird.name.tar.gz", "weird.name"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := projectNameFromPath(tt.path); got != tt.want {
				t.Errorf("projectNameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
