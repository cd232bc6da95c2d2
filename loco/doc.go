// Package loco implements the LOCO command framing as a session.Codec.
//
// Every frame starts with a 22 byte little-endian header:
//
//	id        uint32
//	status    int16
//	method    [11]byte (ASCII, NUL padded)
//	data_type int8
//	data_size uint32
//
// followed by data_size bytes of BSON.
package loco
