/*pmquery is a command line client for optical power meters.

It scans for instruments, opens one, applies the requested configuration, and
prints timestamped readings.  With -mock it runs against a simulator, which is
useful for checking scripts without hardware.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.com/opticslab/gopm/generichttp/tmc"
	"github.com/opticslab/gopm/thorlabs"
	"github.com/opticslab/gopm/tlpm"
)

var (
	mock       = flag.Bool("mock", false, "use a simulated meter, no hardware required")
	addr       = flag.String("addr", "", "host:port of a PM103 console's ethernet port")
	resource   = flag.String("resource", "", "vendor driver resource string, e.g. USB0::0x1313::0x807A::M00000000::INSTR")
	libPaths   = flag.String("lib", "", "comma separated candidate paths for the vendor driver library")
	mask       = flag.String("mask", "", "network search mask for discovery, e.g. 255.255.255.0")
	wavelength = flag.Float64("wavelength", 0, "correction wavelength in nm, 0 leaves the instrument setting")
	unit       = flag.String("unit", "", "power unit, W or dBm, empty leaves the instrument setting")
	autorange  = flag.Bool("autorange", true, "enable automatic range selection")
	channel    = flag.Int("channel", tlpm.DefaultChannel, "sensor channel")
	n          = flag.Int("n", 10, "number of readings to take")
	interval   = flag.Duration("interval", time.Second, "time between readings")
)

func spinner(suffix string) *yacspin.Spinner {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[11],
		Suffix:          " " + suffix,
		SuffixAutoColon: true,
		StopCharacter:   "*",
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	return s
}

// openDriver loads the vendor library and opens a session, discovering a
// device when no resource was named
func openDriver() (*tlpm.PowerMeter, error) {
	var candidates []string
	if *libPaths != "" {
		candidates = strings.Split(*libPaths, ",")
	}
	lib, err := tlpm.LoadLibrary(candidates...)
	if err != nil {
		return nil, err
	}
	tlpm.SetDefault(lib)

	rsrc := *resource
	if rsrc == "" {
		spin := spinner("scanning for power meters")
		spin.Start()
		descrs, err := lib.Discover(*mask)
		spin.Stop()
		if err != nil {
			return nil, err
		}
		if len(descrs) == 0 {
			return nil, fmt.Errorf("no power meters found")
		}
		for i, d := range descrs {
			fmt.Printf("%d: %s (%s %s)\n", i, d.Resource, d.Manufacturer, d.Model)
		}
		rsrc = descrs[0].Resource
		fmt.Println("using", rsrc)
	}
	return lib.Open(rsrc, true, false)
}

func main() {
	flag.Parse()

	var (
		pm  tmc.PowerMeter
		err error
	)
	switch {
	case *mock:
		pm = tlpm.NewSimulator()
	case *addr != "":
		pm = thorlabs.NewPM103(*addr)
	default:
		drv, err2 := openDriver()
		if err2 != nil {
			log.Fatal(err2)
		}
		defer drv.Close()
		pm = drv
	}

	id, err := pm.Identification()
	if err != nil {
		log.Fatal("identification query: ", err)
	}
	fmt.Println("connected to", id)

	if *wavelength != 0 {
		if err = pm.SetWavelength(*wavelength, *channel); err != nil {
			log.Fatal("setting wavelength: ", err)
		}
	}
	if *unit != "" {
		if err = pm.SetPowerUnit(*unit, *channel); err != nil {
			log.Fatal("setting power unit: ", err)
		}
	}
	if err = pm.SetPowerAutoRange(*autorange, *channel); err != nil {
		log.Fatal("setting auto range: ", err)
	}

	u, err := pm.PowerUnit(*channel)
	if err != nil {
		log.Fatal("querying power unit: ", err)
	}

	tick := time.NewTicker(*interval)
	defer tick.Stop()
	for i := 0; i < *n; i++ {
		p, err := pm.MeasurePower(*channel)
		if err != nil {
			fmt.Fprintln(os.Stderr, "reading failed:", err)
		} else {
			fmt.Printf("%s\t%.6e %s\n", time.Now().Format(time.RFC3339Nano), p, u)
		}
		if i < *n-1 {
			<-tick.C
		}
	}
}
