// Package wsdiscovery finds ONVIF devices with WS-Discovery.
//
// A Discoverer asks a transport.Factory for one transport per usable local
// interface and runs a session on each. A session multicasts a SOAP Probe
// every ProbeInterval and, at the same time, reads replies. Replies whose
// RelatesTo header does not carry the session's message id are ignored, as
// are replies without scopes or that fail to decode.
//
// Matching replies become Devices. A device is emitted only if at least one
// of its XAddresses has not been seen earlier in the same run, so a camera
// answering on two interfaces is reported once.
//
// Basic usage:
//
//	stream, err := wsdiscovery.Discover(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for dev := range stream.Devices() {
//	    fmt.Println(dev)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// The run ends when the timeout elapses or ctx is canceled; neither is an
// error. A probe that cannot be sent ends the run with a *DiscoveryError.
package wsdiscovery
