// Package inbox derives conversation threads from the message log.
package inbox
