package tlpm

// DeviceDescriptor describes one instrument found by a resource scan
type DeviceDescriptor struct {
	// Resource is the identifier to pass to Open
	Resource string `json:"resource"`

	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Manufacturer string `json:"manufacturer"`

	// Available is false if another host or process holds the device
	Available bool `json:"available"`
}

// Discover triggers a scan for attached and networked power meters and
// returns the descriptors in driver-reported order.  A non-empty mask is
// forwarded to the driver to bound the network portion of the scan, e.g.
// "255.255.255.0".  Every call re-scans; results may differ between calls as
// devices come and go.  The scan duration is bounded inside the driver.
func (l *Library) Discover(mask string) ([]DeviceDescriptor, error) {
	if !l.loaded() {
		return nil, ErrNotLoaded
	}
	// scan functions take a null session; no open instrument is needed
	const nullSession = 0
	if mask != "" {
		if err := enrich(l.rawSetNetSearchMask(nullSession, mask), "TLPMX_setNetSearchMask"); err != nil {
			return nil, err
		}
	}
	count, st := l.rawFindRsrc(nullSession)
	if err := enrich(st, "TLPMX_findRsrc"); err != nil {
		return nil, err
	}
	descrs := make([]DeviceDescriptor, 0, count)
	for i := 0; i < count; i++ {
		name, st := l.rawGetRsrcName(nullSession, i)
		if err := enrich(st, "TLPMX_getRsrcName"); err != nil {
			return descrs, err
		}
		d := DeviceDescriptor{Resource: name}
		// info is best-effort; some transports only report a name
		model, serial, mfr, avail, st := l.rawGetRsrcInfo(nullSession, i)
		if !st.IsError() {
			d.Model = model
			d.Serial = serial
			d.Manufacturer = mfr
			d.Available = avail
		}
		descrs = append(descrs, d)
	}
	return descrs, nil
}
