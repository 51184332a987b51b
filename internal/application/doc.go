// Package application wires the configuration environment, the bound
// settings, the startup report and the optional read-only HTTP view. It keeps
// the main package focused on CLI parsing and orchestration.
package application
