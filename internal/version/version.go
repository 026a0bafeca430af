// ABOUTME: Build and product identification constants
// ABOUTME: Reported in the websocket hello and by -version
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name advertised to subscribers
	Product = "iqsource"

	// Manufacturer identifies who builds the product
	Manufacturer = "Resonate"
)
