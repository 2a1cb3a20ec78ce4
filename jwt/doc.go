// Package jwt issues and verifies the signed device tokens handed out at login.
//
// A token is only a claim: it is trusted by the validator after the session
// cache and the device registry both corroborate it.
package jwt
