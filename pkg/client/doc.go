// Package client is a thin HTTP client for the HueShift control API,
// used by the CLI and suitable for embedding in deploy tooling.
package client
