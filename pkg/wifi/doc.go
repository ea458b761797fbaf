// Package wifi brings up a Wi-Fi station and waits until it has an address.
//
// A Manager drives a Stack through a fixed bring-up sequence, registers an
// event handler for the connection cycle and blocks until the handler
// reports one of two terminal outcomes:
//
//   - Connected: the station acquired an address
//   - Failed: MaxRetries reconnect attempts after the initial connect were
//     all rejected
//
// # Connection Cycle
//
//	STA_START         -> connect
//	STA_DISCONNECTED  -> reconnect while retries < MaxRetries, else Failed
//	STA_GOT_IP        -> retries = 0, Connected
//
// The handler runs on the stack's event goroutine. A Disconnected arriving
// after Connected with budget left triggers a reconnect, but nobody waits
// for the outcome any more.
//
// # Initialization
//
// Initialize is called once per process. Later calls return the first
// result without touching the stack. A failed connection is terminal: the
// process is expected to restart to try again.
//
// Storage that reports ErrNoFreePages or ErrNewVersionFound (package nvs)
// is erased once and initialized again. Every other bring-up error is
// returned wrapped in ErrInitFailed.
//
// # Station Configuration
//
// The BSSID is applied only when it parses as a MAC address and is not
// 00:00:00:00:00:00. The channel is applied only when it lies in 1-13.
package wifi
