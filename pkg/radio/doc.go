// Package radio provides the event loop shared by the station backends.
//
// A backend owns one Loop, created by its CreateDefaultEventLoop step. Link
// and address events are posted to the loop from whatever goroutine
// observes them and delivered to the registered wifi.HandlerFunc values,
// in order, on the loop goroutine.
//
// Backends:
//   - sim: simulated access points, used by tests and the interactive shell
//   - linuxsta: a Linux interface managed by the system supplicant (netlink, DHCPv4)
//   - picow: the CYW43439 radio of the Raspberry Pi Pico W (TinyGo)
package radio
