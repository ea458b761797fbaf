// Package sim simulates a radio stack with access points in range.
//
// Connect attempts are answered from a Script: the first FailAttempts
// attempts are rejected, after that the configuration is matched against
// the access points by SSID, BSSID and channel, the security threshold is
// checked and the WPA2 PMK compared. A successful attempt posts
// STA_CONNECTED and STA_GOT_IP with an address from the script's pool.
//
// In manual mode the stack only records connect attempts and the caller
// injects outcomes with Disconnect and GotIP.
package sim
