// Package callbacks provides dispatcher.Callback implementations that
// print, log and count the tool call events.
package callbacks
