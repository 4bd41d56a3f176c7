package efex

import (
	"fmt"
	"io"
	"os"
)

// DebugUSBTransfer enables the hex+ASCII dump of every bulk buffer to
// stderr. It is side-effect-free when false, matching the
// DEBUG_USB_TRANSFER build-time gate in the original source, expressed
// here as a runtime flag since Go has no per-build conditional dump.
var DebugUSBTransfer = false

// hexDump writes a 16-byte-per-row hex+ASCII dump of buf to w, prefixed
// by label.
func hexDump(w io.Writer, label string, buf []byte) {
	fmt.Fprintf(w, "%s (%d bytes)\n", label, len(buf))
	for off := 0; off < len(buf); off += 16 {
		end := off + 16
		if end > len(buf) {
			end = len(buf)
		}
		row := buf[off:end]
		fmt.Fprintf(w, "%08x  ", off)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(w, "%02x ", row[i])
			} else {
				fmt.Fprint(w, "   ")
			}
			if i == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}

func (c *Context) maybeDump(label string, buf []byte) {
	if DebugUSBTransfer {
		hexDump(os.Stderr, label, buf)
	}
}

// bulkSend chunks buf into TransportChunkSize-sized writes, handing
// each one to the backend's BulkSend.
func (c *Context) bulkSend(ep uint8, buf []byte) *Error {
	c.maybeDump("bulk-out", buf)
	for off := 0; off < len(buf); off += TransportChunkSize {
		end := off + TransportChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := c.backend.BulkSend(c.handle, ep, buf[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// bulkRecv chunks the read of buf into TransportChunkSize-sized reads.
func (c *Context) bulkRecv(ep uint8, buf []byte) *Error {
	for off := 0; off < len(buf); off += TransportChunkSize {
		end := off + TransportChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := c.backend.BulkRecv(c.handle, ep, buf[off:end]); err != nil {
			return err
		}
	}
	c.maybeDump("bulk-in", buf)
	return nil
}

// readOuterResponse reads and validates the 13-byte outer response.
// Shared by the enveloped Write/Read path and the raw FES path.
func (c *Context) readOuterResponse() *Error {
	buf := make([]byte, outerResponseWireSize)
	if err := c.bulkRecv(c.epIn, buf); err != nil {
		return err
	}
	resp, err := decodeOuterResponse(buf)
	if err != nil {
		return err
	}
	if resp.status != 0 {
		return newErr("readOuterResponse", KindProtocol, fmt.Errorf("device status 0x%02x", resp.status))
	}
	return nil
}

// Write constructs the outer envelope with direction WRITE, sends it,
// bulk-OUTs buf, then reads and validates the outer response.
func (c *Context) Write(buf []byte) *Error {
	req := outerRequest{tag: 0, dataLength: uint32(len(buf)), direction: dirWrite}
	if err := c.bulkSend(c.epOut, req.encode()); err != nil {
		return err
	}
	if len(buf) > 0 {
		if err := c.bulkSend(c.epOut, buf); err != nil {
			return err
		}
	}
	return c.readOuterResponse()
}

// Read constructs the outer envelope with direction READ, sends it,
// bulk-INs buf, then reads and validates the outer response.
func (c *Context) Read(buf []byte) *Error {
	req := outerRequest{tag: 0, dataLength: uint32(len(buf)), direction: dirRead}
	if err := c.bulkSend(c.epOut, req.encode()); err != nil {
		return err
	}
	if len(buf) > 0 {
		if err := c.bulkRecv(c.epIn, buf); err != nil {
			return err
		}
	}
	return c.readOuterResponse()
}

// FES transfer direction, passed to RawTransfer.
type FesDirection int

const (
	FesNone FesDirection = iota
	FesSend
	FesRecv
)

// RawTransfer implements the FES transfer primitive: it bulk-OUTs a
// 20-byte FES header directly (bypassing both the outer-envelope
// wrapper used by Write/Read and the inner EFEX command framing used by
// FEL), then performs the payload phase according to dir, then reads
// and validates only the outer response. This asymmetry with FEL is
// deliberate: FES never frames an inner command.
func (c *Context) RawTransfer(cmd Command, arg [12]byte, dir FesDirection, payload []byte) *Error {
	hdr := fesHeader{cmd: cmd, tag: 0, arg: arg}
	if err := c.bulkSend(c.epOut, hdr.encode()); err != nil {
		return err
	}
	switch dir {
	case FesSend:
		if err := c.bulkSend(c.epOut, payload); err != nil {
			return err
		}
	case FesRecv:
		if err := c.bulkRecv(c.epIn, payload); err != nil {
			return err
		}
	case FesNone:
	}
	return c.readOuterResponse()
}
