package parser

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; the typed errors below wrap them.
var (
	ErrFormat         = errors.New("invalid proxy format")
	ErrPortNotNumeric = errors.New("invalid port number")
	ErrPortRange      = errors.New("port out of range")
)

// FormatError is returned when the input does not have 2 or 4 fields.
type FormatError struct {
	Input  string
	Fields int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid proxy format %q: got %d fields, use 'ip:port' or 'ip:port:username:password'", e.Input, e.Fields)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// PortError is returned when the port field is not a base-10 integer.
type PortError struct {
	Port string
}

func (e *PortError) Error() string {
	return fmt.Sprintf("invalid port number %q: must be an integer", e.Port)
}

func (e *PortError) Unwrap() error { return ErrPortNotNumeric }

// RangeError is returned when the port is outside 1..65535.
type RangeError struct {
	Port int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid port number %d: must be between 1 and 65535", e.Port)
}

func (e *RangeError) Unwrap() error { return ErrPortRange }
