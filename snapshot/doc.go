// Package snapshot captures point-in-time depth of the book and renders
// it for humans. Prices are integer ticks; Scale decimal places turn them
// into currency.
package snapshot
