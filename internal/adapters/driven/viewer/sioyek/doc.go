// Package sioyek integrates with the sioyek PDF viewer: it resolves
// document identities from the viewer's local database and sends feedback
// to a running viewer instance over its command interface.
package sioyek
