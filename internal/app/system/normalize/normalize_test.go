package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Email(tt.input)
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Juan Dela Cruz", "Juan Dela Cruz"},
		{"  Juan Dela Cruz  ", "Juan Dela Cruz"},
		{"", ""},
		{"UPPERCASE NAME", "UPPERCASE NAME"}, // Name preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStudentID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2023-0001", "2023-0001"},
		{"  2023-0001  ", "2023-0001"},
		{"2023-0001a", "2023-0001A"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := StudentID(tt.input)
			if got != tt.want {
				t.Errorf("StudentID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRole(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"admin", "admin"},
		{"ADMIN", "admin"},
		{"  Treasurer  ", "treasurer"},
		{"STUDENT", "student"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Role(tt.input)
			if got != tt.want {
				t.Errorf("Role(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"pending", "pending"},
		{"PENDING", "pending"},
		{"  Completed  ", "completed"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Status(tt.input)
			if got != tt.want {
				t.Errorf("Status(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMethod(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cash", "cash"},
		{"GCash", "gcash"},
		{"  Bank_Transfer  ", "bank_transfer"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Method(tt.input)
			if got != tt.want {
				t.Errorf("Method(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryParam(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"search term", "search term"},
		{"  trimmed  ", "trimmed"},
		{"", ""},
		{"UPPERCASE", "UPPERCASE"}, // Preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := QueryParam(tt.input)
			if got != tt.want {
				t.Errorf("QueryParam(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOrgID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"507f1f77bcf86cd799439011", "507f1f77bcf86cd799439011"},
		{"  507f1f77bcf86cd799439011  ", "507f1f77bcf86cd799439011"},
		{"all", ""},
		{"ALL", ""},
		{"  All  ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := OrgID(tt.input)
			if got != tt.want {
				t.Errorf("OrgID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
