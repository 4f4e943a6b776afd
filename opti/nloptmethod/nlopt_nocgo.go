//go:build windows || no_cgo

package nloptmethod

// Available reports whether the method was registered in this build.
const Available = false
