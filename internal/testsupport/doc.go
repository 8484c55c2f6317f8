// Package testsupport holds helpers shared by package tests: isolated
// configurations, stub binaries, patterned files, and an opened store.
package testsupport
