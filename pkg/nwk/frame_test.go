package nwk

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderEncoding(t *testing.T) {
	h := Header{
		Type:        FrameData,
		Sequence:    0x42,
		PANID:       0x1A62,
		Source:      0x4F21,
		Destination: CoordinatorAddress,
	}
	f := &Frame{Header: h, Payload: []byte{0xAA}}
	got := f.Encode()
	want := []byte{0x10, 0x42, 0x62, 0x1A, 0x21, 0x4F, 0x00, 0x00, 0xAA}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % X, want % X", got, want)
	}

	dec, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if dec.Header != h {
		t.Errorf("header = %+v, want %+v", dec.Header, h)
	}
	if !bytes.Equal(dec.Payload, []byte{0xAA}) {
		t.Errorf("payload = % X", dec.Payload)
	}

	// The decoded payload must not alias the input.
	got[HeaderSize] = 0x00
	if dec.Payload[0] != 0xAA {
		t.Error("payload aliases the input buffer")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrFrameTooShort},
		{"short header", []byte{0x01, 0x00, 0xFF}, ErrFrameTooShort},
		{"unknown type", []byte{0x7E, 0, 0, 0, 0, 0, 0, 0}, ErrUnknownFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPayloads(t *testing.T) {
	t.Run("beacon", func(t *testing.T) {
		b := Beacon{ExtendedPANID: 0xDDDDDDDDDDDDDDDD, Channel: 11, PermitJoin: true}
		got, err := DecodeBeacon(b.Encode())
		if err != nil || got != b {
			t.Errorf("DecodeBeacon() = %+v, %v", got, err)
		}
	})

	t.Run("association", func(t *testing.T) {
		req := AssocRequest{IEEEAddress: 0x00124B0001020304, Capability: CapAllocateAddress}
		gotReq, err := DecodeAssocRequest(req.Encode())
		if err != nil || gotReq != req {
			t.Errorf("DecodeAssocRequest() = %+v, %v", gotReq, err)
		}
		if !gotReq.Capability.Has(CapAllocateAddress) || gotReq.Capability.Has(CapRxOnWhenIdle) {
			t.Errorf("capability bits = 0x%02X", uint8(gotReq.Capability))
		}

		resp := AssocResponse{IEEEAddress: req.IEEEAddress, ShortAddress: 0x4F21, Status: AssocSuccess}
		gotResp, err := DecodeAssocResponse(resp.Encode())
		if err != nil || gotResp != resp {
			t.Errorf("DecodeAssocResponse() = %+v, %v", gotResp, err)
		}
	})

	t.Run("leave", func(t *testing.T) {
		l := Leave{IEEEAddress: 0x1122334455667788}
		got, err := DecodeLeave(l.Encode())
		if err != nil || got != l {
			t.Errorf("DecodeLeave() = %+v, %v", got, err)
		}
	})

	t.Run("device announce", func(t *testing.T) {
		a := DeviceAnnounce{IEEEAddress: 1, ShortAddress: 0x1234, Capability: CapAllocateAddress}
		got, err := DecodeDeviceAnnounce(a.Encode())
		if err != nil || got != a {
			t.Errorf("DecodeDeviceAnnounce() = %+v, %v", got, err)
		}
	})

	t.Run("data", func(t *testing.T) {
		d := Data{Endpoint: 1, Profile: 0x0104, Cluster: 0x0402, ZCL: []byte{0x18, 0x01, 0x0A}}
		enc := d.Encode()
		want := []byte{0x01, 0x04, 0x01, 0x02, 0x04, 0x18, 0x01, 0x0A}
		if !bytes.Equal(enc, want) {
			t.Fatalf("Encode() = % X, want % X", enc, want)
		}
		got, err := DecodeData(enc)
		if err != nil {
			t.Fatalf("DecodeData() error: %v", err)
		}
		if got.Endpoint != 1 || got.Profile != 0x0104 || got.Cluster != 0x0402 || !bytes.Equal(got.ZCL, d.ZCL) {
			t.Errorf("DecodeData() = %+v", got)
		}
	})

	t.Run("short payloads", func(t *testing.T) {
		if _, err := DecodeBeacon([]byte{1}); err != ErrPayloadTooShort {
			t.Errorf("DecodeBeacon() error = %v", err)
		}
		if _, err := DecodeAssocResponse(make([]byte, 10)); err != ErrPayloadTooShort {
			t.Errorf("DecodeAssocResponse() error = %v", err)
		}
		if _, err := DecodeData([]byte{1, 2}); err != ErrPayloadTooShort {
			t.Errorf("DecodeData() error = %v", err)
		}
	})
}

func TestFrameTypeString(t *testing.T) {
	if FrameBeacon.String() != "Beacon" {
		t.Errorf("String() = %q", FrameBeacon.String())
	}
	if FrameType(0x7E).String() != "FrameType(0x7E)" {
		t.Errorf("String() = %q", FrameType(0x7E).String())
	}
	if AssocAccessDenied.String() != "AccessDenied" {
		t.Errorf("String() = %q", AssocAccessDenied.String())
	}
}

func TestSequenceCounterWraps(t *testing.T) {
	c := NewSequenceCounterWithValue(0xFE)
	for _, want := range []uint8{0xFE, 0xFF, 0x00, 0x01} {
		if got := c.Next(); got != want {
			t.Errorf("Next() = 0x%02X, want 0x%02X", got, want)
		}
	}
}

func TestDuplicateFilter(t *testing.T) {
	f := NewDuplicateFilter()
	h := Header{Type: FrameData, Source: 0x4F21, Sequence: 7}

	if !f.Accept(h) {
		t.Fatal("first frame rejected")
	}
	if f.Accept(h) {
		t.Error("duplicate accepted")
	}

	other := h
	other.Source = 0x1111
	if !f.Accept(other) {
		t.Error("same sequence from another source rejected")
	}

	// Pushing the window forward forgets old sequence numbers.
	for i := uint8(8); i < 8+dupWindow; i++ {
		f.Accept(Header{Source: h.Source, Sequence: i})
	}
	if !f.Accept(h) {
		t.Error("sequence outside the window should be accepted again")
	}

	f.Forget(h.Source)
	if !f.Accept(Header{Source: h.Source, Sequence: 9}) {
		t.Error("forgotten source should accept any sequence")
	}
}
