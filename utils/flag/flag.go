/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package.
	Call ParseFlags once in main, never in an init function, otherwise test
	binaries fail on their own -test.* flags.
*/

package flag

import (
	"flag"
)

const (
	APIServer           = "api_server"
	CredentialRefresher = "credential_refresher"
)

var (
	IsDevelopment = flag.Bool("dev", true, "set to true if the current run is for development. default value is true")
	ServiceName   = flag.String("service", APIServer, "'api_server' or 'credential_refresher'")
	ByPassAuth    = flag.Bool("no_auth", false, "skip jwt verification on dashboard routes, only honored with -dev")
)

func ParseFlags() {
	flag.Parse()
}
