// Package picow runs the station on the CYW43439 radio of the Raspberry Pi
// Pico W and Pico 2 W. It builds with TinyGo for rp2040 and rp2350 targets.
//
// Connect joins the network with cyw43439 on its own goroutine; once
// joined, frames are pumped between the radio and a seqs port stack and a
// DHCP lease is requested. A failed join is reported as AUTH_FAIL, a lease
// that does not arrive within DHCPTimeout as CONNECTION_FAIL.
package picow
