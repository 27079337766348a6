package validators

import "testing"

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8443", true},
		{"localhost:22", true},
		{"example.com:443", true},
		{"[::1]:8443", true},
		{"127.0.0.1", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateAddr(tt.addr); got != tt.want {
			t.Errorf("ValidateAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestValidateListenAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0.0.0.0:8443", true},
		{"127.0.0.1:0", true},
		{":8443", true},
		{"[::]:0", true},
		{"localhost:65535", true},
		{"127.0.0.1:65536", false},
		{"127.0.0.1", false},
		{"-bad.example.com:8443", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateListenAddr(tt.addr); got != tt.want {
			t.Errorf("ValidateListenAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"localhost", true},
		{"example.com", true},
		{"sub.example.com", true},
		{"-bad.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateHost(tt.host); got != tt.want {
			t.Errorf("ValidateHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		port any
		want bool
	}{
		{1, true},
		{65535, true},
		{"443", true},
		{0, false},
		{65536, false},
		{"0", false},
		{"abc", false},
		{3.14, false},
	}

	for _, tt := range tests {
		if got := ValidatePort(tt.port); got != tt.want {
			t.Errorf("ValidatePort(%v) = %v, want %v", tt.port, got, tt.want)
		}
	}
}
