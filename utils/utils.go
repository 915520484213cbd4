package utils

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ParseHostPort parses a host string which may or may not contain a port.
// If the port is missing, it returns the host and 0 as port.
func ParseHostPort(input string) (host string, port uint16, err error) {
	if input == "" {
		return "", 0, fmt.Errorf("host cannot be empty")
	}

	h, pStr, err := net.SplitHostPort(input)
	if err != nil {
		// net.SplitHostPort fails on a bare host, which is allowed here
		if strings.Contains(err.Error(), "missing port") {
			return input, 0, nil
		}
		return "", 0, err
	}

	p, err := strconv.Atoi(pStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port: %w", err)
	}

	if p < 0 || p > 65535 {
		return "", 0, fmt.Errorf("invalid port number: %d", p)
	}

	return h, uint16(p), nil
}

// ReadCredentialFile reads a file holding a credential (TLS certificate,
// macaroon) and fails with the path in the message when it is missing or empty.
func ReadCredentialFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("credential path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("credential file %s is empty", path)
	}
	return data, nil
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
