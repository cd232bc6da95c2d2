/*
	Package session multiplexes many concurrent request/response calls over a
	single bidirectional byte stream.

	A Session splits the stream into a read half and a write half. The write
	loop drains a bounded submission queue, tags every command with a
	correlation id and writes it. The read loop decodes frames and hands each
	one to the call waiting on its id. Frames that match no outstanding call
	(server pushes, late replies) and read errors go to the Handler given to
	OpenWithHandler.

	Codec is the frame encoding. The session never looks inside a frame beyond
	its correlation id; see the loco package for the LOCO wire format and
	JSONCodec for a line-delimited JSON format.

	Every call resolves exactly once: either with the matching reply, or with
	no reply when the write failed, the session was closed, or the read loop
	stopped.
*/
package session
