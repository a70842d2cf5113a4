/*Package rec contains an on-disk recorder for power readings.

Readings are appended to one file per day, in yyyy-mm-dd subfolders of the
recorder root.  Each record is fixed width with a CRC-16 trailer, so a
truncated or corrupted tail is detected on read instead of silently producing
garbage numbers.
*/
package rec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path"
	"sync"
	"time"

	"github.com/snksoft/crc"
)

const (
	recordVersion = 1
	recordSize    = 20 // version + i64 time + channel + f64 power + crc16

	fileExt = ".pmrec"
)

var (
	crcTable = crc.NewTable(crc.XMODEM)

	// ErrBadCRC is generated when a record's trailer does not match its body
	ErrBadCRC = errors.New("record failed CRC check")
)

// crcHelper computes the two-byte CRC value in a concurrent safe way and one
// line
func crcHelper(buf []byte) []byte {
	crcUint := crcTable.InitCrc()
	crcUint = crcTable.UpdateCrc(crcUint, buf)
	crcBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBytes, crcTable.CRC16(crcUint))
	return crcBytes
}

// Record is one power reading as stored on disk
type Record struct {
	Time    time.Time `json:"timestamp"`
	Channel int       `json:"channel"`
	Power   float64   `json:"power"`
}

// Encode renders a record into its fixed width binary form
func Encode(r Record) []byte {
	buf := make([]byte, recordSize-2)
	buf[0] = recordVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.Time.UnixNano()))
	buf[9] = byte(r.Channel)
	binary.BigEndian.PutUint64(buf[10:18], math.Float64bits(r.Power))
	return append(buf, crcHelper(buf)...)
}

// Decode parses one fixed width record, verifying its CRC
func Decode(buf []byte) (Record, error) {
	var r Record
	if len(buf) < recordSize {
		return r, fmt.Errorf("short record, %d bytes of %d", len(buf), recordSize)
	}
	body := buf[:recordSize-2]
	want := buf[recordSize-2 : recordSize]
	if got := crcHelper(body); got[0] != want[0] || got[1] != want[1] {
		return r, ErrBadCRC
	}
	if body[0] != recordVersion {
		return r, fmt.Errorf("record version %d not understood", body[0])
	}
	r.Time = time.Unix(0, int64(binary.BigEndian.Uint64(body[1:9])))
	r.Channel = int(body[9])
	r.Power = math.Float64frombits(binary.BigEndian.Uint64(body[10:18]))
	return r, nil
}

// Recorder appends power readings to daily files.  It satisfies the
// monitor's Sink interface, so wiring one to a monitor persists everything
// the loop samples.
type Recorder struct {
	mu sync.Mutex

	// Root is the root path recordings go under
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Enabled gates recording; a disabled recorder drops readings silently
	Enabled bool
}

// fileFor computes the file path for t, creating the day folder as needed
func (r *Recorder) fileFor(t time.Time) (string, error) {
	y, m, d := t.Year(), t.Month(), t.Day()
	fldr := path.Join(r.Root, fmt.Sprintf("%04d-%02d-%02d", y, m, d))
	if err := os.MkdirAll(fldr, 0777); err != nil {
		return "", err
	}
	return path.Join(fldr, r.Prefix+fileExt), nil
}

// Record appends one reading
func (r *Recorder) Record(t time.Time, channel int, power float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Enabled {
		return nil
	}
	fn, err := r.fileFor(t)
	if err != nil {
		return err
	}
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer fid.Close()
	_, err = fid.Write(Encode(Record{Time: t, Channel: channel, Power: power}))
	return err
}

// ReadFile parses a recording file.  The records decoded before any
// corruption are returned alongside the error that stopped the scan.
func ReadFile(fn string) ([]Record, error) {
	buf, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(buf)/recordSize)
	for off := 0; off < len(buf); off += recordSize {
		end := off + recordSize
		if end > len(buf) {
			return records, fmt.Errorf("trailing %d bytes are not a whole record", len(buf)-off)
		}
		r, err := Decode(buf[off:end])
		if err != nil {
			return records, err
		}
		records = append(records, r)
	}
	return records, nil
}
