// SPDX-License-Identifier: MIT

package sentry

import (
	"strconv"
	"strings"
)

// Object is one Sentry summary record. Numeric fields are kept as the
// strings the API sends so a saved snapshot round-trips unchanged.
type Object struct {
	ID          string  `json:"id" cbor:"1,keyasint"`
	Designation string  `json:"des" cbor:"2,keyasint"`
	FullName    string  `json:"fullname" cbor:"3,keyasint"`
	PSCum       string  `json:"ps_cum" cbor:"4,keyasint"`
	PSMax       string  `json:"ps_max" cbor:"5,keyasint"`
	TSMax       *string `json:"ts_max" cbor:"6,keyasint"`
	IP          string  `json:"ip" cbor:"7,keyasint"`
	NImp        int     `json:"n_imp" cbor:"8,keyasint"`
	Range       string  `json:"range" cbor:"9,keyasint"`
	LastObs     string  `json:"last_obs" cbor:"10,keyasint"`
	LastObsJD   string  `json:"last_obs_jd" cbor:"11,keyasint"`
	H           string  `json:"h" cbor:"12,keyasint"`
	Diameter    string  `json:"diameter" cbor:"13,keyasint"`
	VInf        string  `json:"v_inf" cbor:"14,keyasint"`
}

// PalermoCumulative parses ps_cum.
func (o Object) PalermoCumulative() (float64, bool) {
	return parseFloat(o.PSCum)
}

// TorinoMax parses ts_max. It reports false when the value is null or unparseable.
func (o Object) TorinoMax() (float64, bool) {
	if o.TSMax == nil {
		return 0, false
	}
	return parseFloat(*o.TSMax)
}

// TorinoMaxString renders ts_max the way the alert text shows it.
func (o Object) TorinoMaxString() string {
	if o.TSMax == nil {
		return "None"
	}
	return *o.TSMax
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// StringPtr is a helper for building objects with a non-null ts_max.
func StringPtr(s string) *string {
	return &s
}
