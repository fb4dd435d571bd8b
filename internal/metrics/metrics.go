// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars endpoint of the HTTP API.
package metrics

import "expvar"

// Operation counters.
var (
	EncodeTotal          = expvar.NewInt("unenki_encode_total")
	StripTotal           = expvar.NewInt("unenki_strip_total")
	StripEncodedTotal    = expvar.NewInt("unenki_strip_encoded_total")
	InvalidArgumentTotal = expvar.NewInt("unenki_invalid_argument_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
