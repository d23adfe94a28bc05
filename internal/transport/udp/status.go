// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	applog "microtools/internal/log"
	"microtools/internal/noise"
	"microtools/internal/transport"
	"microtools/internal/wav"
)

/*
UDP Status Packet (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Magic             | [4]byte        | 4            | "MTST"                  |
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Flags             | uint8          | 1            | bit0 recording,         |
|                   |                |              | bit1 last write failed  |
| Channels          | uint8          | 1            | 1 or 2                  |
| Format            | uint8          | 1            | 0 PCM8, 1 PCM16, 2 F32  |
| Mode              | uint8          | 1            | 0 white, 1 brown, 2 trig|
| Frames            | uint64         | 8            | Frames in the session   |
| Period            | uint32         | 4            | Clock division          |
| Output            | float32        | 4            | Last noise sample, volts|
| Dropped           | uint32         | 4            | Sessions not written    |
+-----------------------------------------------------------------------------+
*/

// PacketSize is the encoded size of a status packet.
const PacketSize = 40

var (
	packetMagic = [4]byte{'M', 'T', 'S', 'T'}

	ErrShortPacket = errors.New("udp: short status packet")
	ErrBadMagic    = errors.New("udp: not a status packet")
)

const (
	FlagRecording uint8 = 1 << iota
	FlagWriteError
)

// Packet is the wire form of a transport.Status.
type Packet struct {
	Magic     [4]byte
	Seq       uint32
	Timestamp int64
	Flags     uint8
	Channels  uint8
	Format    uint8
	Mode      uint8
	Frames    uint64
	Period    uint32
	Output    float32
	Dropped   uint32
}

func (p Packet) Recording() bool { return p.Flags&FlagRecording != 0 }

// NewPacket packs s.
func NewPacket(s transport.Status) Packet {
	p := Packet{
		Magic:     packetMagic,
		Seq:       uint32(s.Seq),
		Timestamp: s.Time.UnixNano(),
		Channels:  uint8(s.Channels),
		Format:    uint8(s.Format),
		Mode:      uint8(s.Mode),
		Frames:    uint64(max(s.Frames, 0)),
		Period:    uint32(min(s.Period, noise.MaxPeriod)),
		Output:    s.Output,
		Dropped:   uint32(s.Dropped),
	}
	if s.Recording {
		p.Flags |= FlagRecording
	}
	if s.LastError != "" {
		p.Flags |= FlagWriteError
	}
	return p
}

// Encode writes p to buf.
func (p Packet) Encode(buf *bytes.Buffer) error {
	return binary.Write(buf, binary.BigEndian, &p)
}

// DecodePacket parses a status packet.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) < PacketSize {
		return p, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	if err := binary.Read(bytes.NewReader(b[:PacketSize]), binary.BigEndian, &p); err != nil {
		return p, err
	}
	if p.Magic != packetMagic {
		return p, ErrBadMagic
	}
	return p, nil
}

// FormatName is the recording format carried in p.
func (p Packet) FormatName() string { return wav.Format(p.Format).String() }

// datagramSender is satisfied by *UDPSender.
type datagramSender interface {
	Send(data []byte) error
	Close() error
}

// StatusPublisher is a transport.Transport that sends every Status it is
// given as one binary datagram.
type StatusPublisher struct {
	sender datagramSender

	mu           sync.Mutex
	packetBuffer *bytes.Buffer
	sent         uint64
}

func NewStatusPublisher(sender *UDPSender) (*StatusPublisher, error) {
	if sender == nil {
		return nil, errors.New("StatusPublisher: UDP sender cannot be nil")
	}
	return newStatusPublisher(sender), nil
}

func newStatusPublisher(sender datagramSender) *StatusPublisher {
	return &StatusPublisher{
		sender:       sender,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}
}

// Send accepts a transport.Status; anything else is ignored.
func (p *StatusPublisher) Send(data any) error {
	s, ok := data.(transport.Status)
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.packetBuffer.Reset()
	if err := NewPacket(s).Encode(p.packetBuffer); err != nil {
		applog.Errorf("StatusPublisher: Error packing status: %v", err)
		return err
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	p.sent++
	applog.Debugf("StatusPublisher: Sent packet %d (%d bytes)", s.Seq, p.packetBuffer.Len())
	return nil
}

// Sent returns the number of packets sent.
func (p *StatusPublisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Close closes the underlying sender.
func (p *StatusPublisher) Close() error {
	return p.sender.Close()
}

var _ transport.Transport = (*StatusPublisher)(nil)
