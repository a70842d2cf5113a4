package rec

import (
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := Record{
		Time:    time.Unix(0, 1598918400123456789),
		Channel: 2,
		Power:   1.234e-3,
	}
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("decode errored: %v", err)
	}
	if !got.Time.Equal(want.Time) {
		t.Errorf("time = %v, want %v", got.Time, want.Time)
	}
	if got.Channel != want.Channel {
		t.Errorf("channel = %d, want %d", got.Channel, want.Channel)
	}
	if got.Power != want.Power {
		t.Errorf("power = %v, want %v", got.Power, want.Power)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	buf := Encode(Record{Time: time.Now(), Channel: 1, Power: 2e-3})
	buf[12] ^= 0x40 // flip a bit in the power field
	if _, err := Decode(buf); !errors.Is(err, ErrBadCRC) {
		t.Errorf("expected ErrBadCRC, got %v", err)
	}
	if _, err := Decode(buf[:5]); err == nil {
		t.Error("expected an error for a short record")
	}
}

func TestRecorderWritesDailyFiles(t *testing.T) {
	root, err := ioutil.TempDir("", "rec")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(root)
	r := &Recorder{Root: root, Prefix: "bench", Enabled: true}

	stamp := time.Date(2020, 8, 31, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := r.Record(stamp.Add(time.Duration(i)*time.Second), 1, float64(i)*1e-3); err != nil {
			t.Fatalf("record %d errored: %v", i, err)
		}
	}

	fn := path.Join(root, "2020-08-31", "bench"+fileExt)
	records, err := ReadFile(fn)
	if err != nil {
		t.Fatalf("readback errored: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("read %d records, want 5", len(records))
	}
	for i, rec := range records {
		if rec.Channel != 1 {
			t.Errorf("record %d channel = %d, want 1", i, rec.Channel)
		}
		if math.Abs(rec.Power-float64(i)*1e-3) > 1e-15 {
			t.Errorf("record %d power = %v, want %v", i, rec.Power, float64(i)*1e-3)
		}
	}
}

func TestDisabledRecorderDropsSilently(t *testing.T) {
	root, err := ioutil.TempDir("", "rec")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(root)
	r := &Recorder{Root: root, Prefix: "bench"}
	if err := r.Record(time.Now(), 1, 1e-3); err != nil {
		t.Fatalf("disabled record errored: %v", err)
	}
	matches, _ := filepath.Glob(path.Join(root, "*", "*"))
	if len(matches) != 0 {
		t.Errorf("disabled recorder wrote %d files", len(matches))
	}
}

func TestReadFileStopsAtCorruption(t *testing.T) {
	root, err := ioutil.TempDir("", "rec")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	defer os.RemoveAll(root)
	fn := path.Join(root, "bench"+fileExt)

	good := Encode(Record{Time: time.Now(), Channel: 1, Power: 1e-3})
	bad := Encode(Record{Time: time.Now(), Channel: 1, Power: 2e-3})
	bad[3] ^= 0xff
	if err := ioutil.WriteFile(fn, append(good, bad...), 0666); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	records, err := ReadFile(fn)
	if !errors.Is(err, ErrBadCRC) {
		t.Errorf("expected ErrBadCRC, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("read %d records before the corruption, want 1", len(records))
	}
}
