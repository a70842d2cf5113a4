package tlpm

import (
	"errors"
	"testing"
)

func TestStatusClassification(t *testing.T) {
	if StatusSuccess.IsError() {
		t.Error("success classified as error")
	}
	// completion warning, e.g. VI_WARN_NSUP_ID_QUERY
	if Status(0x3FFC0101).IsError() {
		t.Error("warning status classified as error")
	}
	if !StatusTimeout.IsError() {
		t.Error("timeout status not classified as error")
	}
}

func TestEnrichSuccessAndWarningAreNil(t *testing.T) {
	if err := enrich(StatusSuccess, "op"); err != nil {
		t.Errorf("expected nil for success, got %v", err)
	}
	if err := enrich(Status(0x3FFC0101), "op"); err != nil {
		t.Errorf("expected nil for warning, got %v", err)
	}
}

func TestEnrichTaxonomy(t *testing.T) {
	if err := enrich(StatusInvalidObject, "op"); err != ErrInvalidHandle {
		t.Errorf("invalid object should map to ErrInvalidHandle, got %v", err)
	}

	err := enrich(StatusResourceNotFound, "op")
	if _, ok := err.(DeviceNotFoundError); !ok {
		t.Errorf("resource not found should map to DeviceNotFoundError, got %T", err)
	}

	err = enrich(statusParameter1+2, "TLPMX_setWavelength")
	pe, ok := err.(InvalidParameterError)
	if !ok {
		t.Fatalf("parameter status should map to InvalidParameterError, got %T", err)
	}
	if pe.Op != "TLPMX_setWavelength" {
		t.Errorf("expected op to be carried, got %s", pe.Op)
	}

	err = enrich(StatusInvalidParameter, "op")
	if _, ok := err.(InvalidParameterError); !ok {
		t.Errorf("VI_ERROR_INV_PARAMETER should map to InvalidParameterError, got %T", err)
	}

	err = enrich(StatusTimeout, "TLPMX_measPower")
	de, ok := err.(DriverError)
	if !ok {
		t.Fatalf("unmapped error should be DriverError, got %T", err)
	}
	if de.Code != StatusTimeout {
		t.Errorf("expected code %v, got %v", StatusTimeout, de.Code)
	}
}

func TestStatusString(t *testing.T) {
	if s := StatusResourceNotFound.String(); s != "VI_ERROR_RSRC_NFOUND" {
		t.Errorf("expected VI_ERROR_RSRC_NFOUND, got %s", s)
	}
	if s := Status(0xBFFF7777).String(); s != "0xBFFF7777" {
		t.Errorf("unknown code should print in hex, got %s", s)
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	// callers branch on these; they must not alias
	errs := []error{ErrLibraryNotFound, ErrNotLoaded, ErrNotOpen, ErrInvalidHandle}
	for i := range errs {
		for j := range errs {
			if i != j && errors.Is(errs[i], errs[j]) {
				t.Errorf("%v aliases %v", errs[i], errs[j])
			}
		}
	}
}
