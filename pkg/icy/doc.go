// Package icy reads ICY (Shoutcast/Icecast) streams. Servers interleave
// length-prefixed metadata frames into the audio at a fixed byte interval;
// this package strips them back out:
//   - Reader wraps any byte source, returning only audio from Read while
//     decoded track records go to a callback, and seeks by logical
//     (audio-only) offsets across the interleaved frames
//   - Open dials a stream URL, negotiates in-stream metadata via the
//     Icy-MetaData header and resolves .pls/.m3u playlists to the stream
//     they name
//   - ParseHeaders collects the icy-* properties a server reports
package icy
