// Command clipflow is the operator CLI. It talks to a running clipflowd
// over its Unix socket for status and queue management, and can run the
// daemon wiring in the foreground for debugging.
package main
