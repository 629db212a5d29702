// Package model defines the catalyst wire types and the error taxonomy shared
// by every package of the client.
//
// Field names and JSON tags follow the catalyst content server API. These
// structs are the only types intended for direct JSON serialization by
// consumers.
package model
