/*Package tlpm exposes control of Thorlabs optical power meters in Go via the
vendor TLPMX driver library.

The vendor library is loaded at runtime with dlopen, so the package compiles
and links without the Thorlabs SDK installed; only LoadLibrary requires the
shared object to be present.  All measurement logic, transport, and
calibration math live inside the vendor binary -- this package marshals calls
across the C boundary and translates status codes into Go errors.
*/
package tlpm

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <stdint.h>

// VISA-style scalar types per the TLPMX header.  ViStatus is signed in the
// header; the Go side works with the unsigned bit pattern.
typedef int32_t  vi_status;
typedef uint32_t vi_session;
typedef uint32_t vi_uint32;
typedef int32_t  vi_int32;
typedef uint16_t vi_uint16;
typedef int16_t  vi_int16;
typedef uint16_t vi_bool;

// cgo cannot call C function pointers, so each distinct signature in the
// driver's export table gets a static trampoline.
static vi_status call_init(void *f, char *rsrc, vi_bool idq, vi_bool rst, vi_session *vi) {
	return ((vi_status(*)(char*, vi_bool, vi_bool, vi_session*))f)(rsrc, idq, rst, vi);
}

static vi_status call_session(void *f, vi_session vi) {
	return ((vi_status(*)(vi_session))f)(vi);
}

static vi_status call_u32_out(void *f, vi_session vi, vi_uint32 *out) {
	return ((vi_status(*)(vi_session, vi_uint32*))f)(vi, out);
}

static vi_status call_idx_str(void *f, vi_session vi, vi_uint32 idx, char *buf) {
	return ((vi_status(*)(vi_session, vi_uint32, char*))f)(vi, idx, buf);
}

static vi_status call_rsrc_info(void *f, vi_session vi, vi_uint32 idx, char *model, char *serial, char *mfr, vi_bool *avail) {
	return ((vi_status(*)(vi_session, vi_uint32, char*, char*, char*, vi_bool*))f)(vi, idx, model, serial, mfr, avail);
}

static vi_status call_set_f64(void *f, vi_session vi, double val, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, double, vi_uint16))f)(vi, val, ch);
}

static vi_status call_get_f64(void *f, vi_session vi, vi_int16 attr, double *out, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, vi_int16, double*, vi_uint16))f)(vi, attr, out, ch);
}

static vi_status call_meas_f64(void *f, vi_session vi, double *out, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, double*, vi_uint16))f)(vi, out, ch);
}

static vi_status call_set_i16(void *f, vi_session vi, vi_int16 val, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, vi_int16, vi_uint16))f)(vi, val, ch);
}

static vi_status call_get_i16(void *f, vi_session vi, vi_int16 *out, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, vi_int16*, vi_uint16))f)(vi, out, ch);
}

static vi_status call_set_bool(void *f, vi_session vi, vi_bool val, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, vi_bool, vi_uint16))f)(vi, val, ch);
}

static vi_status call_get_bool(void *f, vi_session vi, vi_bool *out, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, vi_bool*, vi_uint16))f)(vi, out, ch);
}

static vi_status call_str_ch(void *f, vi_session vi, char *buf, vi_uint16 ch) {
	return ((vi_status(*)(vi_session, char*, vi_uint16))f)(vi, buf, ch);
}

static vi_status call_ident(void *f, vi_session vi, char *mfr, char *model, char *serial, char *fw) {
	return ((vi_status(*)(vi_session, char*, char*, char*, char*))f)(vi, mfr, model, serial, fw);
}

static vi_status call_err_msg(void *f, vi_session vi, vi_status code, char *buf) {
	return ((vi_status(*)(vi_session, vi_status, char*))f)(vi, code, buf);
}

static vi_status call_err_query(void *f, vi_session vi, vi_int32 *code, char *buf) {
	return ((vi_status(*)(vi_session, vi_int32*, char*))f)(vi, code, buf);
}

static vi_status call_self_test(void *f, vi_session vi, vi_int16 *result, char *buf) {
	return ((vi_status(*)(vi_session, vi_int16*, char*))f)(vi, result, buf);
}

static vi_status call_write_str(void *f, vi_session vi, char *buf) {
	return ((vi_status(*)(vi_session, char*))f)(vi, buf);
}

static vi_status call_read_raw(void *f, vi_session vi, char *buf, vi_uint32 size, vi_uint32 *n) {
	return ((vi_status(*)(vi_session, char*, vi_uint32, vi_uint32*))f)(vi, buf, size, n);
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"
)

const (
	// bufferSize is how large a buffer to allocate for driver strings when
	// the header gives no length; matches TLPM_BUFFER_SIZE in the vendor
	// examples
	bufferSize = 1024

	// closedSession marks a released session handle
	closedSession = ^uint32(0)
)

// exported function names in the driver, dlsym'd at load time.  The argument
// layouts must mirror the vendor header exactly; a mismatch is undefined
// behavior, not a recoverable error.
var symbolNames = []string{
	"TLPMX_init",
	"TLPMX_close",
	"TLPMX_findRsrc",
	"TLPMX_getRsrcName",
	"TLPMX_getRsrcInfo",
	"TLPMX_setNetSearchMask",
	"TLPMX_identificationQuery",
	"TLPMX_getCalibrationMsg",
	"TLPMX_setWavelength",
	"TLPMX_getWavelength",
	"TLPMX_setAvgCnt",
	"TLPMX_getAvgCnt",
	"TLPMX_setPowerUnit",
	"TLPMX_getPowerUnit",
	"TLPMX_setPowerAutoRange",
	"TLPMX_getPowerAutorange",
	"TLPMX_measPower",
	"TLPMX_errorMessage",
	"TLPMX_errorQuery",
	"TLPMX_reset",
	"TLPMX_selfTest",
	"TLPMX_writeRaw",
	"TLPMX_readRaw",
}

// Library is a loaded copy of the vendor driver.  It is safe for concurrent
// use; sessions opened from it serialize their own calls.  The zero value is
// unloaded and only LoadLibrary produces a usable one.
type Library struct {
	handle unsafe.Pointer
	syms   map[string]unsafe.Pointer
}

var (
	defaultMu  sync.Mutex
	defaultLib *Library
)

// LoadLibrary locates and dlopens the TLPMX shared library, trying each
// candidate in order.  Candidates may be bare names (resolved by the OS
// loader's search path), relative paths, or absolute paths; the binding does
// not implement its own search logic beyond passing each string through.
// With no arguments the conventional install names are tried.  On failure
// every loader message is collected into the returned error and the binding
// remains unloaded, so a retry with a corrected path is safe.
func LoadLibrary(candidates ...string) (*Library, error) {
	if len(candidates) == 0 {
		candidates = []string{"libTLPMX.so", "/usr/local/lib/libTLPMX.so"}
	}
	var reasons []string
	for _, cand := range candidates {
		h, err := dlopen(cand)
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		lib := &Library{handle: h, syms: make(map[string]unsafe.Pointer, len(symbolNames))}
		for _, name := range symbolNames {
			sym, err := dlsym(h, name)
			if err != nil {
				dlclose(h)
				return nil, fmt.Errorf("%s does not export %s, wrong library? %v", cand, name, err)
			}
			lib.syms[name] = sym
		}
		return lib, nil
	}
	return nil, fmt.Errorf("%w: tried %d candidates: %v", ErrLibraryNotFound, len(candidates), reasons)
}

// Default returns the process-wide library, or nil if none has been loaded.
// The shared copy exists because the loaded native module is process-wide
// state; load once, release at process exit.
func Default() *Library {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLib
}

// SetDefault installs lib as the process-wide library
func SetDefault(lib *Library) {
	defaultMu.Lock()
	defaultLib = lib
	defaultMu.Unlock()
}

// Release unloads the library.  Sessions opened from it must be closed
// first; using them afterwards is undefined behavior inside the driver.
func (l *Library) Release() error {
	if l == nil || l.handle == nil {
		return ErrNotLoaded
	}
	err := dlclose(l.handle)
	l.handle = nil
	l.syms = nil
	return err
}

// loaded returns true if the library is usable
func (l *Library) loaded() bool {
	return l != nil && l.handle != nil
}

func dlopen(name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	h := C.dlopen(cname, C.RTLD_NOW)
	if h == nil {
		return nil, fmt.Errorf("dlopen %s: %s", name, C.GoString(C.dlerror()))
	}
	return h, nil
}

func dlsym(h unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.dlerror() // clear any stale error
	sym := C.dlsym(h, cname)
	if sym == nil {
		return nil, fmt.Errorf("dlsym %s: %s", name, C.GoString(C.dlerror()))
	}
	return sym, nil
}

func dlclose(h unsafe.Pointer) error {
	if rc := C.dlclose(h); rc != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	return nil
}

func boolToVi(b bool) C.vi_bool {
	if b {
		return 1
	}
	return 0
}

/* raw calls.  Each mirrors one exported driver function and returns the raw
status as a Status; the session layer in meter.go owns error translation. */

func (l *Library) rawInit(resource string, idQuery, reset bool) (uint32, Status) {
	crsrc := C.CString(resource)
	defer C.free(unsafe.Pointer(crsrc))
	var vi C.vi_session
	st := C.call_init(l.syms["TLPMX_init"], crsrc, boolToVi(idQuery), boolToVi(reset), &vi)
	return uint32(vi), Status(uint32(st))
}

func (l *Library) rawClose(vi uint32) Status {
	st := C.call_session(l.syms["TLPMX_close"], C.vi_session(vi))
	return Status(uint32(st))
}

func (l *Library) rawReset(vi uint32) Status {
	st := C.call_session(l.syms["TLPMX_reset"], C.vi_session(vi))
	return Status(uint32(st))
}

func (l *Library) rawFindRsrc(vi uint32) (int, Status) {
	var count C.vi_uint32
	st := C.call_u32_out(l.syms["TLPMX_findRsrc"], C.vi_session(vi), &count)
	return int(count), Status(uint32(st))
}

func (l *Library) rawGetRsrcName(vi uint32, idx int) (string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	st := C.call_idx_str(l.syms["TLPMX_getRsrcName"], C.vi_session(vi), C.vi_uint32(idx), buf)
	return C.GoString(buf), Status(uint32(st))
}

func (l *Library) rawGetRsrcInfo(vi uint32, idx int) (model, serial, mfr string, avail bool, s Status) {
	mbuf := (*C.char)(C.malloc(bufferSize))
	sbuf := (*C.char)(C.malloc(bufferSize))
	fbuf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(mbuf))
	defer C.free(unsafe.Pointer(sbuf))
	defer C.free(unsafe.Pointer(fbuf))
	var av C.vi_bool
	st := C.call_rsrc_info(l.syms["TLPMX_getRsrcInfo"], C.vi_session(vi), C.vi_uint32(idx), mbuf, sbuf, fbuf, &av)
	return C.GoString(mbuf), C.GoString(sbuf), C.GoString(fbuf), av != 0, Status(uint32(st))
}

func (l *Library) rawSetNetSearchMask(vi uint32, mask string) Status {
	cmask := C.CString(mask)
	defer C.free(unsafe.Pointer(cmask))
	st := C.call_write_str(l.syms["TLPMX_setNetSearchMask"], C.vi_session(vi), cmask)
	return Status(uint32(st))
}

func (l *Library) rawIdentificationQuery(vi uint32) (mfr, model, serial, fw string, s Status) {
	b1 := (*C.char)(C.malloc(bufferSize))
	b2 := (*C.char)(C.malloc(bufferSize))
	b3 := (*C.char)(C.malloc(bufferSize))
	b4 := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(b1))
	defer C.free(unsafe.Pointer(b2))
	defer C.free(unsafe.Pointer(b3))
	defer C.free(unsafe.Pointer(b4))
	st := C.call_ident(l.syms["TLPMX_identificationQuery"], C.vi_session(vi), b1, b2, b3, b4)
	return C.GoString(b1), C.GoString(b2), C.GoString(b3), C.GoString(b4), Status(uint32(st))
}

func (l *Library) rawGetCalibrationMsg(vi uint32, ch int) (string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	st := C.call_str_ch(l.syms["TLPMX_getCalibrationMsg"], C.vi_session(vi), buf, C.vi_uint16(ch))
	return C.GoString(buf), Status(uint32(st))
}

func (l *Library) rawSetWavelength(vi uint32, nm float64, ch int) Status {
	st := C.call_set_f64(l.syms["TLPMX_setWavelength"], C.vi_session(vi), C.double(nm), C.vi_uint16(ch))
	return Status(uint32(st))
}

func (l *Library) rawGetWavelength(vi uint32, attr int16, ch int) (float64, Status) {
	var out C.double
	st := C.call_get_f64(l.syms["TLPMX_getWavelength"], C.vi_session(vi), C.vi_int16(attr), &out, C.vi_uint16(ch))
	return float64(out), Status(uint32(st))
}

func (l *Library) rawSetAvgCnt(vi uint32, count int16, ch int) Status {
	st := C.call_set_i16(l.syms["TLPMX_setAvgCnt"], C.vi_session(vi), C.vi_int16(count), C.vi_uint16(ch))
	return Status(uint32(st))
}

func (l *Library) rawGetAvgCnt(vi uint32, ch int) (int16, Status) {
	var out C.vi_int16
	st := C.call_get_i16(l.syms["TLPMX_getAvgCnt"], C.vi_session(vi), &out, C.vi_uint16(ch))
	return int16(out), Status(uint32(st))
}

func (l *Library) rawSetPowerUnit(vi uint32, unit int16, ch int) Status {
	st := C.call_set_i16(l.syms["TLPMX_setPowerUnit"], C.vi_session(vi), C.vi_int16(unit), C.vi_uint16(ch))
	return Status(uint32(st))
}

func (l *Library) rawGetPowerUnit(vi uint32, ch int) (int16, Status) {
	var out C.vi_int16
	st := C.call_get_i16(l.syms["TLPMX_getPowerUnit"], C.vi_session(vi), &out, C.vi_uint16(ch))
	return int16(out), Status(uint32(st))
}

func (l *Library) rawSetPowerAutoRange(vi uint32, on bool, ch int) Status {
	st := C.call_set_bool(l.syms["TLPMX_setPowerAutoRange"], C.vi_session(vi), boolToVi(on), C.vi_uint16(ch))
	return Status(uint32(st))
}

func (l *Library) rawGetPowerAutoRange(vi uint32, ch int) (bool, Status) {
	var out C.vi_bool
	st := C.call_get_bool(l.syms["TLPMX_getPowerAutorange"], C.vi_session(vi), &out, C.vi_uint16(ch))
	return out != 0, Status(uint32(st))
}

func (l *Library) rawMeasPower(vi uint32, ch int) (float64, Status) {
	var out C.double
	st := C.call_meas_f64(l.syms["TLPMX_measPower"], C.vi_session(vi), &out, C.vi_uint16(ch))
	return float64(out), Status(uint32(st))
}

func (l *Library) rawErrorMessage(vi uint32, code Status) (string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	st := C.call_err_msg(l.syms["TLPMX_errorMessage"], C.vi_session(vi), C.vi_status(int32(code)), buf)
	return C.GoString(buf), Status(uint32(st))
}

func (l *Library) rawErrorQuery(vi uint32) (int32, string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	var code C.vi_int32
	st := C.call_err_query(l.syms["TLPMX_errorQuery"], C.vi_session(vi), &code, buf)
	return int32(code), C.GoString(buf), Status(uint32(st))
}

func (l *Library) rawSelfTest(vi uint32) (int16, string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	var result C.vi_int16
	st := C.call_self_test(l.syms["TLPMX_selfTest"], C.vi_session(vi), &result, buf)
	return int16(result), C.GoString(buf), Status(uint32(st))
}

func (l *Library) rawWriteRaw(vi uint32, cmd string) Status {
	ccmd := C.CString(cmd)
	defer C.free(unsafe.Pointer(ccmd))
	st := C.call_write_str(l.syms["TLPMX_writeRaw"], C.vi_session(vi), ccmd)
	return Status(uint32(st))
}

func (l *Library) rawReadRaw(vi uint32) (string, Status) {
	buf := (*C.char)(C.malloc(bufferSize))
	defer C.free(unsafe.Pointer(buf))
	var n C.vi_uint32
	st := C.call_read_raw(l.syms["TLPMX_readRaw"], C.vi_session(vi), buf, bufferSize, &n)
	return C.GoStringN(buf, C.int(n)), Status(uint32(st))
}
