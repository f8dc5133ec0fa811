// Package encryption encrypts and decrypts files with AES-CBC and an
// HMAC-SHA256 tag. Encryption runs through the multi-buffer scheduler so
// that many files share batched cipher passes. Output is written atomically.
package encryption
