// Command printsync keeps a slicing print in sync with YAML scene files.
//
// apply and tree run one-shot sessions; watch runs the daemon that reloads
// the scene on every save; history reads the journal the other commands
// write.
package main
