/*Package usbtmc speaks the USB Test and Measurement Class bulk protocol to
instruments that present a TMC interface, such as Thorlabs power meter
consoles when they are not claimed by the vendor driver.

Only single-buffer DEV_DEP messages are implemented.  Commands and replies for
these instruments are short SCPI lines, so a message always fits in one
transfer and the multi-transfer chatter of the full standard is unnecessary.

A Device satisfies io.ReadWriteCloser, so it drops into a comm.Pool via Maker
and the SCPI layer above needs no USB awareness.
*/
package usbtmc

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"
)

// USB identifiers for Thorlabs power meter consoles
const (
	VendorThorlabs uint16 = 0x1313

	ProductPM100D uint16 = 0x8078
	ProductPM103  uint16 = 0x807A
	ProductPM400  uint16 = 0x8075
)

// bulk message IDs from the class specification, Table 2
const (
	msgDevDepOut   = 0x01
	msgReqDevDepIn = 0x02
)

const (
	headerLen = 12
	alignment = 4
	bufSize   = 1500
)

// tagGen issues bTags.  USBTMC requires them nonzero, incrementing, and
// unique per outstanding transfer.
type tagGen struct {
	sync.Mutex
	value byte
}

func (g *tagGen) next() byte {
	g.Lock()
	defer g.Unlock()
	g.value++
	if g.value == 0 {
		g.value = 1
	}
	return g.value
}

// invTag is the bTagInverse field, Table 1 offset 2
func invTag(b byte) byte {
	return b ^ 0xff
}

// outHeader builds the DEV_DEP_MSG_OUT header, Table 3.  EOM is always set;
// every command here is a complete message.
func outHeader(tag byte, datalen int) [headerLen]byte {
	var h [headerLen]byte
	h[0] = msgDevDepOut
	h[1] = tag
	h[2] = invTag(tag)
	binary.LittleEndian.PutUint32(h[4:8], uint32(datalen))
	h[8] = 0x01 // EOM
	return h
}

// inHeader builds the REQUEST_DEV_DEP_MSG_IN header, Table 4, asking the
// device to terminate the reply on term
func inHeader(tag byte, bufsize int, term byte) [headerLen]byte {
	var h [headerLen]byte
	h[0] = msgReqDevDepIn
	h[1] = tag
	h[2] = invTag(tag)
	binary.LittleEndian.PutUint32(h[4:8], uint32(bufsize))
	h[8] = 0x02 // TermCharEnabled
	h[9] = term
	return h
}

// parseInHeader extracts the payload length a DEV_DEP_MSG_IN header promises
func parseInHeader(h []byte) (int, error) {
	if len(h) < headerLen {
		return 0, fmt.Errorf("short bulk-in header, %d bytes of %d", len(h), headerLen)
	}
	return int(binary.LittleEndian.Uint32(h[4:8])), nil
}

// Device is one claimed TMC interface.  Reads and writes are whole messages;
// the class headers are invisible to the caller.
type Device struct {
	tags  tagGen
	ctx   *gousb.Context
	dev   *gousb.Device
	iface *gousb.Interface
	done  func()
	in    *gousb.InEndpoint
	out   *gousb.OutEndpoint
}

// NewDevice opens the first device matching the vendor and product ID and
// claims its default interface
func NewDevice(vid, pid uint16) (*Device, error) {
	d := &Device{ctx: gousb.NewContext()}
	var err error
	d.dev, err = d.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		d.ctx.Close()
		return nil, err
	}
	if d.dev == nil {
		d.ctx.Close()
		return nil, fmt.Errorf("no USB device %04x:%04x attached", vid, pid)
	}
	if err = d.dev.SetAutoDetach(true); err != nil {
		d.dev.Close()
		d.ctx.Close()
		return nil, err
	}
	d.iface, d.done, err = d.dev.DefaultInterface()
	if err != nil {
		d.dev.Close()
		d.ctx.Close()
		return nil, err
	}
	d.in, err = d.iface.InEndpoint(2)
	if err == nil {
		d.out, err = d.iface.OutEndpoint(2)
	}
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Write sends one command message.  The payload gets a class header and is
// padded to the four byte alignment the standard requires.
func (d *Device) Write(p []byte) (int, error) {
	h := outHeader(d.tags.next(), len(p))
	msg := append(h[:], p...)
	if residual := len(msg) % alignment; residual > 0 {
		msg = append(msg, make([]byte, alignment-residual)...)
	}
	if _, err := d.out.Write(msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read requests one reply message and copies its payload into p
func (d *Device) Read(p []byte) (int, error) {
	h := inHeader(d.tags.next(), bufSize, '\n')
	if err := d.writeFull(h[:]); err != nil {
		return 0, err
	}
	buf := make([]byte, bufSize)
	n, err := d.in.Read(buf)
	if err != nil {
		return 0, err
	}
	want, err := parseInHeader(buf[:n])
	if err != nil {
		return 0, err
	}
	data := buf[headerLen:n]
	if len(data) > want {
		data = data[:want] // drop alignment padding
	}
	return copy(p, data), nil
}

// writeFull retries partial bulk-out writes until the buffer is gone
func (d *Device) writeFull(b []byte) error {
	for len(b) > 0 {
		n, err := d.out.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Close releases the interface and the device
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
	}
	err := d.dev.Close()
	d.ctx.Close()
	return err
}

// Maker adapts NewDevice to the connection pool's factory signature
func Maker(vid, pid uint16) func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) {
		return NewDevice(vid, pid)
	}
}
