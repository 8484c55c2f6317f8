// Package pexels searches the Pexels video API for portrait stock footage and
// downloads the selected renditions.
package pexels
