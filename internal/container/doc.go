// Package container wires the runtime services from a config.Config using
// go.uber.org/dig. Callers use the typed getters and NewAgent; they never
// import dig directly.
package container
