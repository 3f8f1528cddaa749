// Package readiness computes the 0-100 readiness score that gates a story's
// progression to implementation.
package readiness
