// Package tasks manages follow-up tasks.
//
// Agent task suggestions are advisory: they are returned to the caller and
// only become tasks when someone creates them through the Ledger.
package tasks
