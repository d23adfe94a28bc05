// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"microtools/internal/noise"
	"microtools/internal/transport"
	"microtools/internal/wav"
)

func testStatus() transport.Status {
	return transport.Status{
		Seq:       5,
		Time:      time.Unix(1700000000, 42),
		Recording: true,
		Channels:  2,
		Format:    wav.Float32,
		Mode:      noise.ModeTrigger,
		Frames:    96000,
		Period:    400,
		Output:    1,
		Dropped:   3,
		LastError: "disk full",
	}
}

func TestPacketLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPacket(testStatus()).Encode(&buf); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	b := buf.Bytes()
	if len(b) != PacketSize {
		t.Fatalf("size: got %d, want %d", len(b), PacketSize)
	}

	be := binary.BigEndian
	checks := []struct {
		desc string
		got  uint64
		want uint64
	}{
		{"seq", uint64(be.Uint32(b[4:])), 5},
		{"timestamp", be.Uint64(b[8:]), uint64(time.Unix(1700000000, 42).UnixNano())},
		{"flags", uint64(b[16]), uint64(FlagRecording | FlagWriteError)},
		{"channels", uint64(b[17]), 2},
		{"format", uint64(b[18]), uint64(wav.Float32)},
		{"mode", uint64(b[19]), uint64(noise.ModeTrigger)},
		{"frames", be.Uint64(b[20:]), 96000},
		{"period", uint64(be.Uint32(b[28:])), 400},
		{"output", uint64(be.Uint32(b[32:])), 0x3f800000},
		{"dropped", uint64(be.Uint32(b[36:])), 3},
	}
	if string(b[:4]) != "MTST" {
		t.Errorf("magic: got %q", b[:4])
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %d, want %d", c.desc, c.got, c.want)
		}
	}

	p, err := DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket error: %v", err)
	}
	if !p.Recording() || p.FormatName() != "32 bit float" {
		t.Errorf("decoded: got %+v", p)
	}
}

func TestDecodePacketErrors(t *testing.T) {
	if _, err := DecodePacket(make([]byte, 10)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("short: got %v", err)
	}
	if _, err := DecodePacket(make([]byte, PacketSize)); !errors.Is(err, ErrBadMagic) {
		t.Errorf("magic: got %v", err)
	}
}

func TestStatusPublisherLoopback(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP error: %v", err)
	}
	defer ln.Close()

	sender, err := NewUDPSender(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender error: %v", err)
	}
	pub, err := NewStatusPublisher(sender)
	if err != nil {
		t.Fatalf("NewStatusPublisher error: %v", err)
	}

	if err := pub.Send("ignored"); err != nil {
		t.Errorf("Send(non-status) error: %v", err)
	}
	if err := pub.Send(testStatus()); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP error: %v", err)
	}
	p, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatalf("DecodePacket error: %v", err)
	}
	if p.Seq != 5 || p.Frames != 96000 {
		t.Errorf("received: got %+v", p)
	}
	if pub.Sent() != 1 {
		t.Errorf("Sent: got %d, want 1", pub.Sent())
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := pub.Send(testStatus()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close: got %v, want ErrClosed", err)
	}
}

func TestNewStatusPublisherNilSender(t *testing.T) {
	if _, err := NewStatusPublisher(nil); err == nil {
		t.Error("expected error for nil sender")
	}
}
