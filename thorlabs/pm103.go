/*Package thorlabs provides drivers for Thorlabs power meter consoles over
their SCPI interfaces.

The PM103 driver talks plain SCPI through a comm.Pool, so the same code runs
over the console's ethernet port or a USBTMC connection.  It deliberately
exposes the same channelized method set as the vendor library binding, so
servers can mount either behind one interface.
*/
package thorlabs

import (
	"fmt"
	"strings"
	"time"

	"github.com/opticslab/gopm/comm"
	"github.com/opticslab/gopm/scpi"
	"github.com/opticslab/gopm/tlpm"
	"github.com/opticslab/gopm/usbtmc"
)

// PMErrors maps the console's SCPI error codes to strings
var PMErrors = map[int]string{
	-100: "COMMAND ERROR",
	-101: "INVALID CHARACTER",
	-102: "SYNTAX ERROR",
	-103: "INVALID SEPARATOR",
	-104: "DATA TYPE ERROR",
	-108: "PARAMETER NOT ALLOWED",
	-109: "MISSING PARAMETER",
	-110: "COMMAND HEADER ERROR",
	-113: "UNDEFINED HEADER (UNKNOWN COMMAND)",
	-115: "UNEXPECTED NUMBER OF PARAMETERS",
	-120: "NUMERIC DATA ERROR",
	-130: "SUFFIX ERROR",
	-131: "INVALID SUFFIX",
	-151: "INVALID STRING DATA",

	-220: "PARAMETER ERROR",
	-221: "SETTINGS CONFLICT",
	-222: "DATA OUT OF RANGE",
	-230: "DATA CORRUPT OR STALE",
	-231: "DATA QUESTIONABLE",
	-240: "HARDWARE ERROR",
	-241: "HARDWARE MISSING",

	-310: "SYSTEM ERROR",
	-321: "OUT OF MEMORY",
	-330: "SELF-TEST FAILED",
	-350: "QUEUE OVERFLOW",

	-400: "QUERY ERROR",
	-410: "QUERY INTERRUPTED",

	1: "NO SENSOR CONNECTED",
	2: "SENSOR NOT SUPPORTED",
	3: "INSTRUMENT IS OVERHEATED",
}

// PMError is a formattable console error code
type PMError struct {
	code int
}

// Error satisfies the stdlib error interface
func (e PMError) Error() string {
	if s, ok := PMErrors[e.code]; ok {
		return fmt.Sprintf("%d - %s", e.code, s)
	}
	return fmt.Sprintf("%d - UNKNOWN ERROR CODE", e.code)
}

// translate folds SCPI command and execution errors into the parameter error
// type the rest of the stack branches on; anything else passes through
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	code := scpi.ErrorCode(err)
	if code <= -100 && code > -300 {
		return tlpm.InvalidParameterError{Code: tlpm.StatusInvalidParameter, Op: op}
	}
	return err
}

// PM103 is a Thorlabs PM103 power meter console
type PM103 struct {
	scpi.SCPI
}

// NewPM103 returns a PM103 driver over TCP to the console's ethernet port
func NewPM103(addr string) *PM103 {
	maker := comm.NewTCPMaker(addr, 3*time.Second)
	p := &PM103{}
	p.SCPI = scpi.SCPI{Pool: comm.NewPool(1, 30*time.Second, maker), Handshaking: true}
	return p
}

// NewPM103USB returns a PM103 driver over the console's USBTMC interface
func NewPM103USB() *PM103 {
	maker := usbtmc.Maker(usbtmc.VendorThorlabs, usbtmc.ProductPM103)
	p := &PM103{}
	p.SCPI = scpi.SCPI{Pool: comm.NewPool(1, 30*time.Second, maker), Handshaking: true}
	return p
}

// sens builds the channelized sensor subsystem prefix
func sens(ch int) string {
	return fmt.Sprintf("SENSe%d", ch)
}

// Identification returns the *IDN? reply, manufacturer first, comma separated
func (p *PM103) Identification() (string, error) {
	return p.ReadString("*IDN?")
}

// CalibrationMessage returns the attached sensor's calibration message
func (p *PM103) CalibrationMessage() (string, error) {
	return p.ReadString("CALibration:STRing?")
}

// SetWavelength programs the correction wavelength in nanometers on a channel
func (p *PM103) SetWavelength(nm float64, ch int) error {
	err := p.Write(fmt.Sprintf("%s:CORRection:WAVelength %.1f", sens(ch), nm))
	return translate(err, "SENS:CORR:WAV")
}

// Wavelength returns the programmed correction wavelength in nanometers
func (p *PM103) Wavelength(ch int) (float64, error) {
	f, err := p.ReadFloat(sens(ch) + ":CORRection:WAVelength?")
	return f, translate(err, "SENS:CORR:WAV?")
}

// SetAverageCount programs how many samples are averaged per reading
func (p *PM103) SetAverageCount(n int, ch int) error {
	err := p.Write(fmt.Sprintf("%s:AVERage:COUNt %d", sens(ch), n))
	return translate(err, "SENS:AVER:COUN")
}

// AverageCount returns the programmed averaging count
func (p *PM103) AverageCount(ch int) (int, error) {
	n, err := p.ReadInt(sens(ch) + ":AVERage:COUNt?")
	return n, translate(err, "SENS:AVER:COUN?")
}

// SetPowerUnit selects W or dBm for subsequent readings
func (p *PM103) SetPowerUnit(unit string, ch int) error {
	u, err := tlpm.ParseUnit(unit)
	if err != nil {
		return tlpm.InvalidParameterError{Code: tlpm.StatusInvalidParameter, Op: "SENS:POW:UNIT"}
	}
	arg := "W"
	if u == tlpm.DBm {
		arg = "DBM"
	}
	err = p.Write(fmt.Sprintf("%s:POWer:UNIT %s", sens(ch), arg))
	return translate(err, "SENS:POW:UNIT")
}

// PowerUnit returns the unit readings are expressed in
func (p *PM103) PowerUnit(ch int) (string, error) {
	resp, err := p.ReadString(sens(ch) + ":POWer:UNIT?")
	if err != nil {
		return "", translate(err, "SENS:POW:UNIT?")
	}
	if strings.EqualFold(resp, "DBM") {
		return tlpm.DBm.String(), nil
	}
	return tlpm.Watt.String(), nil
}

// SetPowerAutoRange enables or disables automatic range selection
func (p *PM103) SetPowerAutoRange(on bool, ch int) error {
	arg := "OFF"
	if on {
		arg = "ON"
	}
	err := p.Write(fmt.Sprintf("%s:POWer:RANGe:AUTO %s", sens(ch), arg))
	return translate(err, "SENS:POW:RANG:AUTO")
}

// PowerAutoRange returns true if automatic range selection is enabled
func (p *PM103) PowerAutoRange(ch int) (bool, error) {
	b, err := p.ReadBool(sens(ch) + ":POWer:RANGe:AUTO?")
	return b, translate(err, "SENS:POW:RANG:AUTO?")
}

// MeasurePower triggers a reading and returns it in the configured unit
func (p *PM103) MeasurePower(ch int) (float64, error) {
	f, err := p.ReadFloat(fmt.Sprintf("MEASure%d:POWer?", ch))
	if err != nil {
		return 0, tlpm.MeasurementError{Code: tlpm.StatusIOError, Channel: ch}
	}
	return f, nil
}

// Close drains the connection pool
func (p *PM103) Close() error {
	p.Pool.CloseAll()
	return nil
}
