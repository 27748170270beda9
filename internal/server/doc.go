// Package server implements the HTTP surface of the document distribution
// service: session authentication, the document listing and download
// routes, and the administrative operations. It wires the routes to the
// stores, the blob storage collaborator, and the access gate.
package server
