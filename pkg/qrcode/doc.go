// Package qrcode renders provisioning payloads as QR code images.
//
// It is a thin wrapper around github.com/skip2/go-qrcode used to turn
// otpauth:// URIs into PNG images that authenticator apps can scan during
// enrollment.
//
// # Usage
//
//	png, err := qrcode.Image("otpauth://totp/...", 256)
//
// or, for direct embedding in an <img> tag:
//
//	dataURI, err := qrcode.DataURI("otpauth://totp/...", 256)
//
// Passing a non-positive size falls back to 256 pixels.
package qrcode
