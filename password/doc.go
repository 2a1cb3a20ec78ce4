// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash are unpadded base64; padded values from older rows still
// decode. [Migrating] additionally verifies bcrypt hashes carried over from an
// older credential table and flags them for rewrite via NeedsUpgrade.
//
// This package owns hashing and verification only. It never stores passwords
// and never logs plaintext or hash material.
package password
