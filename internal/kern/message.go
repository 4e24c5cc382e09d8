package kern

import (
	"encoding/binary"
	"fmt"

	"github.com/gokern/gokern/internal/abi"
)

// Message is the kernel's single inline IPC payload: a 16-bit type id plus
// flag bits, and a union of per-type fields. Only the fields relevant to
// a message's Type are meaningful; the others are
// zero. Exception/PageFault/Notifications are kernel-originated variants;
// Value and Str carry an ordinary user-to-user message.
type Message struct {
	Type uint32 // low 16 bits: abi.MsgXxx id; high bits: abi.MsgHasString/MsgHasBulk
	Src  abi.Tid

	// User payload.
	Value uint64
	Str   string

	// Out-of-line bulk descriptor, carried inline but never copied by the
	// kernel itself.
	BulkPtr uintptr
	BulkLen uint32

	// Kernel-originated payloads.
	Reason        abi.ExceptionReason // MsgException
	Vaddr         uintptr             // MsgPageFault
	IP            uintptr             // MsgPageFault
	FaultFlags    uint32              // MsgPageFault
	Notifications uint32              // MsgNotifications
}

// TypeID returns the message's low-16-bit type identifier, stripped of the
// HasString/HasBulk flag bits.
func (m Message) TypeID() uint16 {
	return uint16(m.Type & abi.MsgIDMask)
}

// HasString reports whether Str is meaningful.
func (m Message) HasString() bool { return m.Type&abi.MsgHasString != 0 }

// HasBulk reports whether BulkPtr/BulkLen are meaningful.
func (m Message) HasBulk() bool { return m.Type&abi.MsgHasBulk != 0 }

// wireHeaderLen is the size, in bytes, of the fixed portion of Marshal's
// output; Str (if present) follows as a length-prefixed tail.
const wireHeaderLen = 64

// Marshal encodes m into a fixed-size binary record, little-endian, using
// explicit byte-offset PutUintNN calls rather than reflection-based
// encoding.
func (m Message) Marshal() []byte {
	strBytes := []byte(m.Str)
	buf := make([]byte, wireHeaderLen+len(strBytes))

	binary.LittleEndian.PutUint32(buf[0:4], m.Type)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(m.Src)))
	binary.LittleEndian.PutUint64(buf[8:16], m.Value)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(m.BulkPtr))
	binary.LittleEndian.PutUint32(buf[24:28], m.BulkLen)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(m.Reason))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(m.Vaddr))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(m.IP))
	binary.LittleEndian.PutUint32(buf[48:52], m.FaultFlags)
	binary.LittleEndian.PutUint32(buf[52:56], m.Notifications)
	binary.LittleEndian.PutUint32(buf[56:60], uint32(len(strBytes)))
	// buf[60:64] reserved/padding.
	copy(buf[wireHeaderLen:], strBytes)

	return buf
}

// Unmarshal decodes a Marshal-produced record back into m.
func (m *Message) Unmarshal(buf []byte) error {
	if len(buf) < wireHeaderLen {
		return fmt.Errorf("kern: message record too short: %d bytes", len(buf))
	}

	m.Type = binary.LittleEndian.Uint32(buf[0:4])
	m.Src = abi.Tid(int32(binary.LittleEndian.Uint32(buf[4:8])))
	m.Value = binary.LittleEndian.Uint64(buf[8:16])
	m.BulkPtr = uintptr(binary.LittleEndian.Uint64(buf[16:24]))
	m.BulkLen = binary.LittleEndian.Uint32(buf[24:28])
	m.Reason = abi.ExceptionReason(binary.LittleEndian.Uint32(buf[28:32]))
	m.Vaddr = uintptr(binary.LittleEndian.Uint64(buf[32:40]))
	m.IP = uintptr(binary.LittleEndian.Uint64(buf[40:48]))
	m.FaultFlags = binary.LittleEndian.Uint32(buf[48:52])
	m.Notifications = binary.LittleEndian.Uint32(buf[52:56])
	strLen := binary.LittleEndian.Uint32(buf[56:60])

	if uint32(len(buf)) < uint32(wireHeaderLen)+strLen {
		return fmt.Errorf("kern: message string length %d exceeds record", strLen)
	}
	if strLen > 0 {
		m.Str = string(buf[wireHeaderLen : wireHeaderLen+strLen])
	} else {
		m.Str = ""
	}
	return nil
}

func exceptionMessage(reason abi.ExceptionReason) Message {
	return Message{Type: uint32(abi.MsgException), Src: abi.KernelTid, Reason: reason}
}

func pageFaultMessage(vaddr, ip uintptr, flags uint32) Message {
	return Message{Type: uint32(abi.MsgPageFault), Src: abi.KernelTid, Vaddr: vaddr, IP: ip, FaultFlags: flags}
}

func notificationsMessage(bits uint32) Message {
	return Message{Type: uint32(abi.MsgNotifications), Src: abi.KernelTid, Notifications: bits}
}
