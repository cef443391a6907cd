// Package utils provides input validation for data crossing the
// context boundary.
package utils
