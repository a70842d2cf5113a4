package generichttp

import (
	"encoding/json"
	"go/types"
	"log"
	"net/http"
)

// FloatT is a wrapper for floats to mirror the JSON body {"f64": 3.14}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a wrapper for ints to mirror the JSON body {"int": 42}
type IntT struct {
	Int int `json:"int"`
}

// StrT is a wrapper for strings to mirror the JSON body {"str": "abc"}
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a wrapper for bools to mirror the JSON body {"bool": true}
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct containing the basic types and their values,
// with a flag indicating which of them is actually populated
type HumanPayload struct {
	// T holds the type of data actually contained in the payload
	T types.BasicKind

	Bool   bool
	Int    int
	Float  float64
	String string
}

// EncodeAndRespond writes the payload to w as the wrapped JSON body matching
// its type
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	switch hp.T {
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		http.Error(w, "payload type not understood by server", http.StatusInternalServerError)
		return
	}
	if err != nil {
		log.Printf("error encoding payload to json %q", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
