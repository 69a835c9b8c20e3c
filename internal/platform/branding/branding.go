// Package branding holds the product name shown across service surfaces.
package branding

// AppName is the user-facing product name.
const AppName = "Threshold Quest"
