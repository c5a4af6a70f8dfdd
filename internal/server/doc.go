// Package server implements the UDP server for receiving soft-decision
// datagrams and the HTTP API. The UDP side converts fixed-point int8 soft
// bits to LLRs and feeds them, in arrival order, into per-remote link
// sessions; the HTTP side exposes monitoring and management endpoints.
package server
