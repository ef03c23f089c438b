// Package faceauth implements face enrollment and login on top of an identity
// store, a login history and an exact matcher.
package faceauth
