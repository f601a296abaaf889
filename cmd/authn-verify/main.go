// Command authn-verify verifies an identity token and prints its subject.
//
//	authn-verify --config authn.json --token eyJ...
//	echo "$TOKEN" | authn-verify --config authn.lua
//	AUTHN_ISSUER=https://authn.example.com AUTHN_AUDIENCES=app authn-verify --token eyJ...
//
// Without --config the configuration is read from environment variables
// named after --env-prefix. The exit status is non-zero when the token is
// rejected.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
