// Package plutus implements the Plutus data model carried by datums and
// redeemers, together with its CBOR encoding.
//
// # Encoding
//
// Constructors use the compact tags 121-127 for indices 0-6 and 1280-1400 for
// indices 7-127. Any other index uses the general form, tag 102 wrapping
// [index, fields]. Integers outside the 64-bit range are bignums (tags 2 and 3).
// Arrays, maps and byte strings may be definite or indefinite on input;
// Encode always writes definite lengths.
//
// # Hashing
//
// A datum hash is blake2b-256 over the datum bytes exactly as they appeared
// on chain. Re-encoding a decoded value is not guaranteed to reproduce those
// bytes, so Hash always takes the raw encoding.
//
// # Shapes
//
// Typed readers (AsConstr, AsInt64, ...) return *ShapeError when a value is
// well-formed Plutus data of the wrong shape. Callers use Outcome to tell a
// mismatch apart from bytes that are not Plutus data at all.
package plutus
