// Package http contains the REST handlers for inspecting and
// administering the broker.
package http
