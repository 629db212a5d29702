// Package authchain signs entity ids for development catalysts.
//
// Production catalysts expect an Ethereum-style auth chain produced by a
// wallet; this package only covers local and test networks that accept
// Ed25519 or Dilithium3 signed entities. It also carries a small
// filesystem key store so the CLI can keep named signing seeds.
//
// Signatures are produced, never verified: the server is the verifier.
package authchain
