// Package link manages the active receive links: one session per remote
// soft-bit source, each owning a superframe engine. The manager serialises
// engine access per session, tracks activity for timeout cleanup, and keeps
// a short history of status records for the monitoring API.
package link
