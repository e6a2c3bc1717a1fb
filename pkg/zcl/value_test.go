package zcl

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValue_Accessors(t *testing.T) {
	if n, err := Int16(-4000).Int(); err != nil || n != -4000 {
		t.Errorf("Int16(-4000).Int() = %d, %v", n, err)
	}
	if _, err := Int16(-1).Uint(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("negative Uint() error = %v", err)
	}
	if _, err := CharString("x").Int(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("string Int() error = %v", err)
	}
	if s, err := CharString("DIY").Str(); err != nil || s != "DIY" {
		t.Errorf("Str() = %q, %v", s, err)
	}
	if b, err := Bool(true).AsBool(); err != nil || !b {
		t.Errorf("AsBool() = %v, %v", b, err)
	}
}

func TestValue_IsValid(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Int16(InvalidInt16), false},
		{Int16(0), true},
		{Uint16(InvalidUint16), false},
		{Uint16(10000), true},
		{Uint8(InvalidUint8), false},
		{CharString(""), true},
	}
	for _, tt := range tests {
		if got := tt.v.IsValid(); got != tt.want {
			t.Errorf("%s.IsValid() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestWriter_PutValueEncoding(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want []byte
	}{
		{"int16 negative", Int16(-2), []byte{0x29, 0xFE, 0xFF}},
		{"uint16", Uint16(0x1234), []byte{0x21, 0x34, 0x12}},
		{"bool", Bool(true), []byte{0x10, 0x01}},
		{"string", CharString("DIY"), []byte{0x42, 0x03, 'D', 'I', 'Y'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf).PutTypedValue(tt.v); err != nil {
				t.Fatalf("PutTypedValue failed: %v", err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("got % X, want % X", buf.Bytes(), tt.want)
			}
		})
	}
}

func TestWriter_StringTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(&buf).PutValue(CharString(strings.Repeat("a", MaxStringLength+1)))
	if !errors.Is(err, ErrStringTooLong) {
		t.Errorf("error = %v, want ErrStringTooLong", err)
	}
}

func TestReader_InvalidStringMarker(t *testing.T) {
	v, err := NewReader(bytes.NewReader([]byte{0x42, 0xFF})).TypedValue()
	if err != nil {
		t.Fatalf("TypedValue failed: %v", err)
	}
	if s, _ := v.Str(); s != "" {
		t.Errorf("got %q, want empty", s)
	}
}
