//go:build !unix

package fsx

func crossDevice(error) bool { return false }
