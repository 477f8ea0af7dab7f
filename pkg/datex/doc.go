package datex

// Package datex provides a civil calendar date type.
//
// It exists because occurrence scheduling works in "local calendar days":
// comparing, stepping, and persisting dates must not depend on wall-clock
// time, DST shifts, or the host zone database beyond resolving "today".
