// Package pinnedhttp is a minimal HTTP/1.1 client whose connections are
// pinned to one class of network interface, for example the cellular radio
// while Wi-Fi holds the default route.
//
// # Quick Start
//
//	client := pinnedhttp.New(pinnedhttp.WithInterface(netpath.Cellular))
//
//	resp, err := client.Get(ctx, "https://httpbin.org/get")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Status, resp.Used, resp.Mismatch())
//
// # Asynchronous Calls
//
// Go starts an exchange on its own goroutine. The completion callback runs
// exactly once; Cancel closes the socket and fails the exchange with
// KindCancelled.
//
//	call := client.Go(ctx, pinnedhttp.Get(url), func(r *pinnedhttp.Response, err error) {
//	    ...
//	})
//	defer call.Cancel()
//
// # Interface Pinning
//
// A Selector chooses the interface for each connection and later reports
// which class the connection actually ran on. On Linux sockets are bound
// with SO_BINDTODEVICE, on Darwin with IP_BOUND_IF; everywhere they are bound
// to an address of the chosen interface, DNS lookups included. Where the
// device bind is denied (no CAP_NET_RAW) or unsupported, the kernel routes by
// destination, so Response.Used is reported as netpath.Unknown.
//
// Response.Used is always the observed class. A mismatch is reported through
// Response.Mismatch, a warning log, a span attribute and a counter; with
// WithStrictInterface(true) it fails the exchange with KindInterfaceUnavailable.
//
// # Protocol Scope
//
// Each exchange sends "Connection: close" and reads until the peer closes.
// Bodies are returned as received: chunked transfer-encoding, compression and
// redirects are not handled. There is no default timeout; set one with
// WithTimeout.
//
// # Observability
//
// Every exchange produces an "HTTP {method}" client span with stage events
// (interface selection, DNS, connect, TLS, first byte) and http.client.*
// metrics, using the global providers unless WithTracerProvider and
// WithMeterProvider are given.
package pinnedhttp
