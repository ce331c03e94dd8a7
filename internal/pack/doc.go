// Package pack multiplexes a set of named files into a single byte stream
// and splits it back apart.
//
// Layout of a packed blob:
//
//	[table length: 1 byte = 8 * file count]
//	[entry sizes: 8 bytes little-endian each]
//	[entries: name length (1 byte) | name | contents] ...
//
// Each entry size counts the name length byte, the name and the contents.
// Entries are stored back to back; only the size table delimits them. The
// single length byte caps a blob at MaxFiles files.
package pack
